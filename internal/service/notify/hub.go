// Package notify is the toast boundary: user-visible notifications fan out to
// whatever presentation surfaces are currently attached.
package notify

import (
	"log"
	"sync"
)

// Notification is one user-visible toast.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier is the narrow interface coordinators publish through.
type Notifier interface {
	Notify(n Notification)
}

// Hub fans notifications out to subscribers. A subscriber that cannot keep up
// loses the notification rather than blocking the turn.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Notification
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Notification)}
}

// Subscribe registers a listener and returns its channel plus a cancel func.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Notification, 4)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Notify delivers a notification to every subscriber, best effort.
func (h *Hub) Notify(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	log.Printf("[notify] %s: %s", n.Title, n.Message)
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
