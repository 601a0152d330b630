package notify

import "sync"

// Hub fans notifications out to the live streams of their user. Slow
// subscribers miss messages instead of blocking the sender.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Notification]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Notification]struct{})}
}

// Subscribe registers a stream for userID. The returned func unregisters it.
func (h *Hub) Subscribe(userID string) (<-chan Notification, func()) {
	ch := make(chan Notification, 8)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs[userID], ch)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) Send(n Notification) {
	h.mu.Lock()
	for ch := range h.subs[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
	h.mu.Unlock()
}
