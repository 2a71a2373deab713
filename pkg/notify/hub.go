package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Message is one event addressed to a single user.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Body      []byte    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Channel is a per-user real-time stream.
type Channel interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(userID string) *Subscription
}

// Subscription receives a user's messages until Unsubscribe is called.
type Subscription struct {
	C <-chan Message

	hub    *Hub
	userID string
	id     uint64
	once   sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s.userID, s.id)
	})
}

// Hub fans messages out to the local subscribers of each user. A slow
// subscriber never blocks the publisher: a full buffer drops the message.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[uint64]chan Message
	buffer  int
	nextID  uint64
	closed  bool
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[string]map[uint64]chan Message),
		buffer: buffer,
	}
}

func (h *Hub) Subscribe(userID string) *Subscription {
	ch := make(chan Message, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{C: ch, hub: h, userID: userID, id: h.nextID}

	if h.closed {
		close(ch)
		return sub
	}

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[uint64]chan Message)
	}
	h.subs[userID][sub.id] = ch
	return sub
}

func (h *Hub) remove(userID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.subs[userID]
	if !ok {
		return
	}
	if ch, ok := byID[id]; ok {
		delete(byID, id)
		close(ch)
	}
	if len(byID) == 0 {
		delete(h.subs, userID)
	}
}

// Publish delivers locally. It never fails.
func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.Deliver(msg)
	return nil
}

// Deliver hands msg to every local subscriber of msg.UserID and returns how
// many received it.
func (h *Hub) Deliver(msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, ch := range h.subs[msg.UserID] {
		select {
		case ch <- msg:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

// Dropped counts messages discarded because a subscriber buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for userID, byID := range h.subs {
		for _, ch := range byID {
			close(ch)
		}
		delete(h.subs, userID)
	}
}
