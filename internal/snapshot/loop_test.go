package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopRunsInOrder(t *testing.T) {
	loop := NewLoop(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		i := i
		assert.True(t, loop.Post(ctx, func() { out <- i }))
	}
	go func() { _ = loop.Run(ctx) }()

	for want := 1; want <= 3; want++ {
		select {
		case got := <-out:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatal("task did not run")
		}
	}
}

func TestLoopPostAfterClose(t *testing.T) {
	loop := NewLoop(1)
	loop.Close()
	loop.Close()
	assert.False(t, loop.Post(context.Background(), func() {}))
	assert.NoError(t, loop.Run(context.Background()))
}

func TestLoopPostHonorsContext(t *testing.T) {
	loop := NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, loop.Post(ctx, func() {}))
}

func TestHubCoalescesAndCancels(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Watch("trans")

	hub.Notify("trans")
	hub.Notify("trans")
	assert.Len(t, ch, 1)
	<-ch

	hub.Notify("")
	assert.Len(t, ch, 1)
	<-ch

	cancel()
	cancel()
	hub.Notify("trans")
	assert.Len(t, ch, 0)
	assert.Equal(t, 0, hub.Watchers())
}
