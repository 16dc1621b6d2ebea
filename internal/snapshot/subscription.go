// Package snapshot delivers live, complete result sets of document queries.
//
// A Subscription polls its source and pushes a Snapshot to its handler
// whenever the result set changes. Deliveries are never diffs: every
// Snapshot carries the whole current set, so consumers recompute rather
// than patch. Handlers run on a Loop, one at a time.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"hash"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/logging"
)

// State is the lifecycle state of a subscription's data.
type State int32

const (
	// Loading means nothing has been delivered yet.
	Loading State = iota
	// Ready means the latest snapshot holds a good result set.
	Ready
	// Failed means the source has been unreachable for FailureThreshold polls in a row.
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// MarshalText lets State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is one delivery: the complete result set or a failure.
type Snapshot struct {
	State State
	Docs  []docstore.Document
	Err   error
	At    time.Time
}

// Handler receives snapshots on the subscription's loop.
type Handler func(Snapshot)

// Source runs queries. *docstore.Store satisfies it.
type Source interface {
	Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error)
}

// Options tune a subscription. Zero values pick defaults.
type Options struct {
	// Interval between polls. Defaults to 2s.
	Interval time.Duration
	// FailureThreshold is the number of consecutive query errors that
	// produce a Failed snapshot. Defaults to 2.
	FailureThreshold int
	// Hub, when set, wakes the subscription as soon as its collection changes.
	Hub *Hub
	// Loop runs the handler. When nil the subscription owns a private loop.
	Loop   *Loop
	Logger logrus.FieldLogger
	Clock  func() time.Time
}

// Defaults applied to zero Options.
const (
	DefaultInterval         = 2 * time.Second
	DefaultFailureThreshold = 2
)

// Subscription is a live query. Create it with Subscribe and release it with Stop.
type Subscription struct {
	src     Source
	query   docstore.Query
	handler Handler
	opts    Options
	log     logrus.FieldLogger

	loop    *Loop
	ownLoop bool

	cancel   context.CancelFunc
	unwatch  func()
	done     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
	state    atomic.Int32

	// owned by the poll goroutine
	failures  int
	delivered bool
	lastFP    [sha256.Size]byte
	lastState State
}

// Subscribe starts a live query of q against src. The first poll happens
// immediately; h is called on the loop for every delivered snapshot.
func Subscribe(src Source, q docstore.Query, h Handler, opts Options) *Subscription {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		src:     src,
		query:   q,
		handler: h,
		opts:    opts,
		log:     opts.Logger.WithField("query", q.Key()),
		loop:    opts.Loop,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	if s.loop == nil {
		s.loop = NewLoop(1)
		s.ownLoop = true
		go func() { _ = s.loop.Run(context.Background()) }()
	}

	var wakeup <-chan struct{}
	if opts.Hub != nil {
		wakeup, s.unwatch = opts.Hub.Watch(q.Collection)
	}

	go s.run(ctx, wakeup)
	return s
}

// Query returns the subscribed query.
func (s *Subscription) Query() docstore.Query {
	return s.query
}

// State returns the state of the most recent delivery.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

// Stop cancels the subscription. It is idempotent and safe to call before
// any delivery or from inside a handler. After Stop returns no handler call
// for this subscription will begin. A handler already running on a shared
// loop is not waited for and may still finish after Stop returns.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.cancel()
		if s.unwatch != nil {
			s.unwatch()
		}
		<-s.done
		if s.ownLoop {
			s.loop.Close()
		}
	})
}

func (s *Subscription) run(ctx context.Context, wakeup <-chan struct{}) {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		case <-wakeup:
			s.poll(ctx)
		}
	}
}

func (s *Subscription) poll(ctx context.Context) {
	docs, err := s.src.Query(ctx, s.query)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		s.failures++
		if s.failures < s.opts.FailureThreshold {
			s.log.WithError(err).WithField("attempt", s.failures).Warn("query failed, retrying")
			return
		}
		if s.lastState == Failed {
			s.log.WithError(err).Debug("query still failing")
			return
		}
		s.log.WithError(err).WithField("attempts", s.failures).Error("subscription failed")
		s.deliver(ctx, Snapshot{State: Failed, Err: fmt.Errorf("querying %s: %w", s.query.Collection, err)})
		return
	}

	recovered := s.lastState == Failed
	if recovered {
		s.log.Info("subscription recovered")
	}
	s.failures = 0

	fp := fingerprint(docs)
	if s.delivered && !recovered && fp == s.lastFP {
		return
	}
	s.lastFP = fp
	s.deliver(ctx, Snapshot{State: Ready, Docs: docs})
}

func (s *Subscription) deliver(ctx context.Context, snap Snapshot) {
	snap.At = s.opts.Clock()
	s.delivered = true
	s.lastState = snap.State
	s.state.Store(int32(snap.State))

	s.loop.Post(ctx, func() {
		if s.stopped.Load() {
			return
		}
		s.handler(snap)
	})
}

// fingerprint identifies a result set by document ids, versions and contents.
func fingerprint(docs []docstore.Document) [sha256.Size]byte {
	h := sha256.New()
	for _, d := range docs {
		writeDoc(h, d)
	}
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeDoc(h hash.Hash, d docstore.Document) {
	_, _ = h.Write([]byte(d.ID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatInt(d.Version, 10)))
	_, _ = h.Write([]byte{0})
	raw, err := json.Marshal(d.Data)
	if err == nil {
		_, _ = h.Write(raw)
	}
	_, _ = h.Write([]byte{0})
}
