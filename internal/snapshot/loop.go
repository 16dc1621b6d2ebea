package snapshot

import (
	"context"
	"sync"
)

// Loop runs posted functions one at a time on a single goroutine. All
// subscriptions sharing a loop see their handlers serialized, so state owned
// by those handlers needs no locking.
type Loop struct {
	tasks     chan func()
	quit      chan struct{}
	closeOnce sync.Once
}

// NewLoop creates a loop whose queue holds up to buffer pending tasks.
func NewLoop(buffer int) *Loop {
	if buffer < 0 {
		buffer = 0
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		quit:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled or Close is called.
// Cancellation is a normal shutdown and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.quit:
			return nil
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn. It reports false if ctx ended or the loop closed first.
func (l *Loop) Post(ctx context.Context, fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-ctx.Done():
		return false
	case <-l.quit:
		return false
	}
}

// Close stops the loop. Queued tasks that have not started are dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.quit) })
}

// Done is closed once the loop has been closed.
func (l *Loop) Done() <-chan struct{} {
	return l.quit
}
