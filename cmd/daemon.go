package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/daemon"
)

var (
	flagDaemonAddr         string
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serve the live expense, budget and category views over HTTP",
	Long: `Serve the live views over HTTP. Statistics follow the current week and
move to the next one on the configured rollover schedule. /v1/stream pushes
every view change as a server-sent event.`,
	RunE: runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether fintrackd is running and what its views hold",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop fintrackd",
	RunE:  runDaemonStop,
}

func init() {
	daemonCmd.PersistentFlags().StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonPIDFile, "pid-file", filepath.Join(config.DataDir(), "fintrackd.pid"), "fintrackd pid file")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonLogFile, "log-file", filepath.Join(config.DataDir(), "fintrackd.log"), "fintrackd log file when detached")
	daemonCmd.PersistentFlags().IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "View changes kept for /v1/events (default from config)")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run fintrackd in the background")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: set on the detached process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd, daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

// daemonRuntimeState is written beside the pid file so status can find the
// API without reloading config.
type daemonRuntimeState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DBPath    string    `json:"db_path"`
}

// daemonFiles is the pid file of one fintrackd and the state file next to it.
type daemonFiles struct {
	pid string
}

func (f daemonFiles) statePath() string {
	return strings.TrimSuffix(f.pid, filepath.Ext(f.pid)) + ".state.json"
}

// running reports the pid recorded in the pid file and whether that process
// is still alive. A missing pid file is not an error.
func (f daemonFiles) running() (int, bool, error) {
	pid, err := f.readPID()
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return pid, processAlive(pid), nil
}

// claim records st as the running daemon. It fails while another live
// process owns the pid file and clears a stale one.
func (f daemonFiles) claim(st daemonRuntimeState) error {
	pid, alive, err := f.running()
	if err != nil {
		return err
	}
	if alive {
		return fmt.Errorf("fintrackd already running (pid %d)", pid)
	}
	if err := os.MkdirAll(filepath.Dir(f.pid), 0o750); err != nil {
		return fmt.Errorf("creating pid directory: %w", err)
	}
	if err := os.WriteFile(f.pid, []byte(strconv.Itoa(st.PID)+"\n"), 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.statePath(), append(data, '\n'), 0o600)
}

func (f daemonFiles) release() {
	_ = os.Remove(f.pid)
	_ = os.Remove(f.statePath())
}

func (f daemonFiles) readPID() (int, error) {
	data, err := os.ReadFile(f.pid) //nolint:gosec // path comes from the local user's flags
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", f.pid)
	}
	return pid, nil
}

func (f daemonFiles) readState() (daemonRuntimeState, error) {
	var st daemonRuntimeState
	data, err := os.ReadFile(f.statePath()) //nolint:gosec // path comes from the local user's flags
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// waitForExit polls until pid is gone or timeout passes.
func waitForExit(pid int, timeout, every time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !processAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(every)
	}
}

// childArgs are the arguments for the detached process: the current ones
// minus --detach, plus the hidden --child marker.
func childArgs(args []string) []string {
	out := make([]string, 0, len(args)+1)
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return append(out, "--child")
}

// daemonAddr is --addr, or the configured address.
func daemonAddr() (string, error) {
	if flagDaemonAddr != "" {
		return flagDaemonAddr, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Daemon.Addr, nil
}

func runDaemon(_ *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("--detach and --child are mutually exclusive")
	}
	if flagDaemonDetach {
		return startDaemonDetached()
	}
	return runDaemonForeground()
}

func startDaemonDetached() error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	if pid, alive, err := files.running(); err != nil {
		return err
	} else if alive {
		return fmt.Errorf("fintrackd already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600) //nolint:gosec // path comes from the local user's flags
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, childArgs(os.Args[1:])...) //nolint:gosec // re-executes this binary
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("starting fintrackd: %w", err)
	}

	fmt.Printf("  Started fintrackd (pid %d)\n", child.Process.Pid)
	if addr, err := daemonAddr(); err == nil {
		fmt.Printf("  Statistics: http://%s/v1/statistics\n", addr)
	}
	fmt.Printf("  Log: %s\n", flagDaemonLogFile)
	return nil
}

func runDaemonForeground() error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := rt.cfg.Daemon.Addr
	if flagDaemonAddr != "" {
		addr = flagDaemonAddr
	}
	eventsBuffer := rt.cfg.Daemon.EventsBuffer
	if flagDaemonEventsBuffer > 0 {
		eventsBuffer = flagDaemonEventsBuffer
	}

	files := daemonFiles{pid: flagDaemonPIDFile}
	if err := files.claim(daemonRuntimeState{
		PID:       os.Getpid(),
		Addr:      addr,
		StartedAt: time.Now(),
		DBPath:    rt.cfg.DBPath(),
	}); err != nil {
		return err
	}
	defer files.release()

	cfg := daemon.Config{
		Addr:         addr,
		EventsBuffer: eventsBuffer,
		RolloverCron: rt.cfg.Daemon.RolloverCron,
		DBPath:       rt.cfg.DBPath(),
		Deps:         rt.deps(),
		Logger:       rt.log,
	}
	// A nil *notify.Feed must not reach the Runner field.
	if feed := rt.startFeed(); feed != nil {
		cfg.Feed = feed
	}
	svc := daemon.New(cfg)

	fmt.Printf("  fintrackd serving %s on http://%s\n", rt.cfg.DBPath(), addr)
	fmt.Printf("  Week rolls over on %q\n", rt.cfg.Daemon.RolloverCron)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	pid, alive, err := files.running()
	if err != nil {
		return err
	}
	if pid == 0 {
		fmt.Println("  fintrackd is not running")
		return nil
	}
	if !alive {
		fmt.Printf("  fintrackd is not running (stale pid %d in %s)\n", pid, flagDaemonPIDFile)
		return nil
	}

	addr := flagDaemonAddr
	if st, err := files.readState(); err == nil && st.Addr != "" && addr == "" {
		addr = st.Addr
	}
	if addr == "" {
		if addr, err = daemonAddr(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := fetchDaemonStatus(ctx, addr)
	if err != nil {
		fmt.Printf("  fintrackd pid %d at http://%s\n", pid, addr)
		fmt.Println(cli.RenderStatus("API unreachable: "+err.Error(), true))
		return nil
	}
	fmt.Print(renderDaemonStatus(pid, addr, st))
	return nil
}

func fetchDaemonStatus(ctx context.Context, addr string) (daemon.Status, error) {
	var st daemon.Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/v1/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decoding status: %w", err)
	}
	return st, nil
}

func renderDaemonStatus(pid int, addr string, st daemon.Status) string {
	updated := "pending"
	if !st.LastUpdateAt.IsZero() {
		updated = st.LastUpdateAt.Local().Format(time.RFC3339)
	}
	rows := [][]string{
		{"Process", fmt.Sprintf("pid %d, up since %s", pid, st.StartedAt.Local().Format(time.RFC3339))},
		{"API", "http://" + addr},
		{"Database", st.DBPath},
		{"Week", st.Range.Start + " to " + st.Range.End},
	}
	for _, view := range []string{daemon.EventStatistics, daemon.EventBudgets, daemon.EventCategories} {
		rows = append(rows, []string{"View " + view, st.Views[view]})
	}
	rows = append(rows,
		[]string{"Last update", fmt.Sprintf("%s (%s updates)", updated, cli.FormatNumber(st.UpdateCount))},
		[]string{"Listeners", fmt.Sprintf("%d stream, %d store", st.SubscriberCount, st.HubWatchers)},
	)

	out := cli.RenderTable(cli.Table{Title: "fintrackd", Rows: rows})
	if st.LastError != "" {
		out += cli.RenderStatus("last error: "+st.LastError, true) + "\n"
	}
	return out
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	pid, alive, err := files.running()
	if err != nil {
		return err
	}
	if !alive {
		files.release()
		return errors.New("fintrackd is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding fintrackd: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signalling fintrackd: %w", err)
	}
	if !waitForExit(pid, 8*time.Second, 150*time.Millisecond) {
		return fmt.Errorf("fintrackd (pid %d) did not exit in time", pid)
	}
	files.release()
	fmt.Printf("  Stopped fintrackd (pid %d)\n", pid)
	return nil
}
