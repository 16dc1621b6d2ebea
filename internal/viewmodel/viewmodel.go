// Package viewmodel holds the live state behind each fintrack screen.
//
// A view owns its subscriptions and runs every handler on one snapshot.Loop,
// so its cached intermediate state is only ever touched from that loop.
// Renderers read immutable state values through Latest or an OnChange callback.
package viewmodel

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/logging"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
)

// Store is the document access a view needs. *docstore.Store satisfies it.
type Store interface {
	snapshot.Source
	Add(ctx context.Context, collection string, data map[string]any) (docstore.Document, error)
}

// Deps wires a view to its store and scheduling.
type Deps struct {
	Store       Store
	Collections config.CollectionsConfig
	// Subscription settings. When Subscription.Loop is nil the view runs a
	// private loop so its handlers stay serialized.
	Subscription snapshot.Options
	Logger       logrus.FieldLogger
}

// base carries the loop and subscription bookkeeping shared by all views.
type base struct {
	deps    Deps
	log     logrus.FieldLogger
	loop    *snapshot.Loop
	ownLoop bool

	mu        sync.Mutex
	subs      []*snapshot.Subscription
	closeOnce sync.Once
}

func newBase(deps Deps, component string) *base {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	b := &base{
		deps: deps,
		log:  logging.Component(deps.Logger, component),
		loop: deps.Subscription.Loop,
	}
	if b.loop == nil {
		b.loop = snapshot.NewLoop(4)
		b.ownLoop = true
		go func() { _ = b.loop.Run(context.Background()) }()
	}
	return b
}

func (b *base) subscribe(q docstore.Query, h snapshot.Handler) {
	opts := b.deps.Subscription
	opts.Loop = b.loop
	opts.Logger = b.log
	sub := snapshot.Subscribe(b.deps.Store, q, h, opts)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
}

// close stops every subscription before returning. No handler of this view
// starts afterwards.
func (b *base) close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		subs := b.subs
		b.subs = nil
		b.mu.Unlock()

		for _, s := range subs {
			s.Stop()
		}
		if b.ownLoop {
			b.loop.Close()
		}
	})
}

func (b *base) logRejections(kind string, rejected []pipeline.Rejection) {
	for _, r := range rejected {
		b.log.WithFields(logrus.Fields{
			"collection": kind,
			"doc_id":     r.DocID,
		}).WithError(r.Err).Warn("document rejected")
	}
}
