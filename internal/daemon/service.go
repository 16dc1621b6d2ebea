// Package daemon provides the long-running fintrack service: live views over
// the document store, served as JSON and server-sent events.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/fintrack/internal/logging"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
	"github.com/theirongolddev/fintrack/internal/viewmodel"
)

// Event types.
const (
	EventStatistics = "statistics"
	EventBudgets    = "budgets"
	EventCategories = "categories"
	EventRollover   = "rollover"
)

// Runner is a background component run alongside the service, such as the
// AMQP change feed.
type Runner interface {
	Run(ctx context.Context) error
}

// Config controls the daemon runtime behavior.
type Config struct {
	Addr         string
	EventsBuffer int
	// RolloverCron is a cron expression; on each tick the statistics view moves to
	// the week containing the current time.
	RolloverCron string
	DBPath       string

	Deps   viewmodel.Deps
	Feed   Runner
	Now    func() time.Time
	Logger logrus.FieldLogger
}

// Event is emitted whenever a view publishes a new state.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt        time.Time         `json:"started_at"`
	Addr             string            `json:"addr"`
	DBPath           string            `json:"db_path,omitempty"`
	Range            RangeDTO          `json:"range"`
	PollIntervalSec  int               `json:"poll_interval_sec"`
	FailureThreshold int               `json:"failure_threshold"`
	Views            map[string]string `json:"views"`
	UpdateCount      int64             `json:"update_count"`
	LastUpdateAt     time.Time         `json:"last_update_at"`
	LastError        string            `json:"last_error,omitempty"`
	EventCount       int               `json:"event_count"`
	SubscriberCount  int               `json:"subscriber_count"`

	// HubWatchers counts the subscriptions waiting on store change wakeups.
	HubWatchers int `json:"hub_watchers"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg Config
	log logrus.FieldLogger

	mu           sync.RWMutex
	startedAt    time.Time
	rng          pipeline.DateRange
	stats        StatisticsDTO
	budgets      BudgetsDTO
	categories   CategoriesDTO
	updateCount  int64
	lastUpdateAt time.Time
	nextEventID  int64
	events       []Event

	nextSubID int
	subs      map[int]chan Event

	// viewMu guards the live views; rollover swaps the statistics view.
	viewMu    sync.Mutex
	statsView *viewmodel.Statistics
	budView   *viewmodel.Budgets
	catView   *viewmodel.Categories
}

// New returns a new daemon service with the provided config.
func New(cfg Config) *Service {
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	loading := snapshot.Loading.String()
	return &Service{
		cfg:        cfg,
		log:        logging.Component(cfg.Logger, "daemon"),
		startedAt:  cfg.Now(),
		stats:      StatisticsDTO{State: loading},
		budgets:    BudgetsDTO{State: loading},
		categories: CategoriesDTO{State: loading},
		subs:       make(map[int]chan Event),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/statistics", s.handleStatistics).Methods(http.MethodGet)
	r.HandleFunc("/v1/budgets", s.handleBudgets).Methods(http.MethodGet)
	r.HandleFunc("/v1/categories", s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc("/v1/categories/{kind}", s.handleAddCategory).Methods(http.MethodPost)
	r.HandleFunc("/v1/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/v1/stream", s.handleStream).Methods(http.MethodGet)
	return r
}

// Run opens the views and serves HTTP until ctx is canceled. The loop, the
// server, the scheduler and the optional feed share one errgroup.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("daemon listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	sched := cron.New(cron.WithLocation(time.Local))
	if s.cfg.RolloverCron != "" {
		if _, err := sched.AddFunc(s.cfg.RolloverCron, s.rollover); err != nil {
			_ = ln.Close()
			return fmt.Errorf("scheduling rollover %q: %w", s.cfg.RolloverCron, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	loop := snapshot.NewLoop(32)
	g.Go(func() error { return loop.Run(ctx) })

	s.openViews(loop)
	sched.Start()

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("daemon http server: %w", err)
		}
		return nil
	})

	if s.cfg.Feed != nil {
		g.Go(func() error { return s.cfg.Feed.Run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		<-sched.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		s.closeViews()
		loop.Close()
		return err
	})

	s.log.WithField("addr", ln.Addr().String()).Info("daemon started")
	err := g.Wait()
	s.log.Info("daemon stopped")
	return err
}

func (s *Service) openViews(loop *snapshot.Loop) {
	deps := s.cfg.Deps
	deps.Subscription.Loop = loop
	if deps.Logger == nil {
		deps.Logger = s.cfg.Logger
	}

	rng := pipeline.WeekRange(s.cfg.Now())
	s.mu.Lock()
	s.rng = rng
	s.stats.Range = rangeDTO(rng)
	s.mu.Unlock()

	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	s.cfg.Deps = deps
	s.statsView = viewmodel.NewStatistics(deps, rng, s.onStatistics)
	s.budView = viewmodel.NewBudgets(deps, s.onBudgets)
	s.catView = viewmodel.NewCategories(deps, s.onCategories)
}

func (s *Service) closeViews() {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if s.statsView != nil {
		s.statsView.Close()
	}
	if s.budView != nil {
		s.budView.Close()
	}
	if s.catView != nil {
		s.catView.Close()
	}
}

// rollover moves the statistics view to the current week. It is a no-op
// when the week has not changed.
func (s *Service) rollover() {
	rng := pipeline.WeekRange(s.cfg.Now())

	s.viewMu.Lock()
	if s.statsView == nil || s.statsView.Range() == rng {
		s.viewMu.Unlock()
		return
	}
	s.statsView.Close()

	s.mu.Lock()
	s.rng = rng
	s.stats = StatisticsDTO{State: snapshot.Loading.String(), Range: rangeDTO(rng)}
	s.mu.Unlock()

	s.statsView = viewmodel.NewStatistics(s.cfg.Deps, rng, s.onStatistics)
	s.viewMu.Unlock()

	s.log.WithField("range", rng.String()).Info("statistics rolled over")
	s.record(EventRollover, rangeDTO(rng), "")
}

func (s *Service) onStatistics(st viewmodel.StatisticsState) {
	dto := statisticsDTO(st)
	s.mu.Lock()
	if st.Range != s.rng {
		// A late delivery from a view that was just replaced.
		s.mu.Unlock()
		return
	}
	s.stats = dto
	s.mu.Unlock()
	s.record(EventStatistics, dto, dto.Error)
}

func (s *Service) onBudgets(st viewmodel.BudgetsState) {
	dto := budgetsDTO(st)
	s.mu.Lock()
	s.budgets = dto
	s.mu.Unlock()
	s.record(EventBudgets, dto, dto.Error)
}

func (s *Service) onCategories(st viewmodel.CategoriesState) {
	dto := categoriesDTO(st)
	s.mu.Lock()
	s.categories = dto
	s.mu.Unlock()
	s.record(EventCategories, dto, dto.Error)
}

// record counts an update and publishes it as an event.
func (s *Service) record(typ string, payload any, errMsg string) {
	now := s.cfg.Now()

	s.mu.Lock()
	s.updateCount++
	s.lastUpdateAt = now
	s.nextEventID++
	ev := Event{ID: s.nextEventID, Type: typ, Timestamp: now, Payload: payload}
	s.mu.Unlock()

	if errMsg != "" {
		s.log.WithField("view", typ).Warn(errMsg)
	}
	s.publishEvent(ev)
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opts := s.cfg.Deps.Subscription
	interval := opts.Interval
	if interval <= 0 {
		interval = snapshot.DefaultInterval
	}
	threshold := opts.FailureThreshold
	if threshold <= 0 {
		threshold = snapshot.DefaultFailureThreshold
	}

	var lastErr string
	for _, e := range []string{s.stats.Error, s.budgets.Error, s.categories.Error} {
		if e != "" {
			lastErr = e
			break
		}
	}

	var watchers int
	if opts.Hub != nil {
		watchers = opts.Hub.Watchers()
	}

	return Status{
		StartedAt:        s.startedAt,
		Addr:             s.cfg.Addr,
		DBPath:           s.cfg.DBPath,
		Range:            s.stats.Range,
		PollIntervalSec:  int(interval.Seconds()),
		FailureThreshold: threshold,
		Views: map[string]string{
			EventStatistics: s.stats.State,
			EventBudgets:    s.budgets.State,
			EventCategories: s.categories.State,
		},
		UpdateCount:     s.updateCount,
		LastUpdateAt:    s.lastUpdateAt,
		LastError:       lastErr,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
		HubWatchers:     watchers,
	}
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
