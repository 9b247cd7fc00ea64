package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"finquest/core"
)

// Hub is a simple pub/sub for broadcasting notices to channels.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	dropped atomic.Int64
}

type subscriber struct {
	user core.UserID // empty receives every user's notices
	ch   chan core.Notice
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe receives notices of every user.
func (h *Hub) Subscribe(buffer int) (int, <-chan core.Notice) {
	return h.SubscribeUser("", buffer)
}

// SubscribeUser receives only the notices addressed to user.
func (h *Hub) SubscribeUser(user core.UserID, buffer int) (int, <-chan core.Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Notice, buffer)
	h.subs[id] = subscriber{user: user, ch: ch}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}

func (h *Hub) Broadcast(_ context.Context, n core.Notice) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.user != "" && s.user != n.UserID {
			continue
		}
		select {
		case s.ch <- n:
		default: /* drop if full */
			h.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// MarshalJSON is a helper to convert notices to JSON bytes for WebSocket/SSE.
func MarshalJSON(n core.Notice) []byte {
	b, _ := json.Marshal(n)
	return b
}
