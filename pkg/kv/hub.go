package kv

import (
	"context"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 64

// Hub fans key changes out to in-process subscribers. A subscriber that falls
// behind loses events; Dropped counts them.
type Hub struct {
	mu      sync.Mutex
	subs    map[int]chan Change
	nextID  int
	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Change)}
}

func (h *Hub) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()
	return ch, nil
}

func (h *Hub) Publish(change Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- change:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
