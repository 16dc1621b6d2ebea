package snapshot

import "sync"

// Hub fans collection change notifications out to watching subscriptions.
// Notifications coalesce: a watcher that has not drained its channel sees
// one pending wakeup no matter how many writes happened.
type Hub struct {
	mu       sync.Mutex
	next     int
	watchers map[string]map[int]chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[int]chan struct{})}
}

// Watch returns a channel that receives a value after changes to collection,
// and a cancel func that unregisters it. cancel is idempotent.
func (h *Hub) Watch(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.watchers[collection] == nil {
		h.watchers[collection] = make(map[int]chan struct{})
	}
	h.watchers[collection][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.watchers[collection], id)
			if len(h.watchers[collection]) == 0 {
				delete(h.watchers, collection)
			}
		})
	}
}

// Notify wakes every watcher of collection. An empty collection wakes all watchers.
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if collection == "" {
		for _, ws := range h.watchers {
			wake(ws)
		}
		return
	}
	wake(h.watchers[collection])
}

// Watchers returns the number of registered watchers across all collections.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ws := range h.watchers {
		n += len(ws)
	}
	return n
}

func wake(ws map[int]chan struct{}) {
	for _, ch := range ws {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
