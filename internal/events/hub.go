// Package events fans call lifecycle events out to connected clients.
// Delivery is best effort: a subscriber with a saturated buffer misses
// the event rather than slowing the publisher.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType identifies call lifecycle event variants.
type EventType string

const (
	TypeCallRequested EventType = "call.requested"
	TypeCallAccepted  EventType = "call.accepted"
	TypeCallRejected  EventType = "call.rejected"
	TypeCallEnded     EventType = "call.ended"
)

// Event is one lifecycle notice pushed to a participant's open sockets.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	ChatID    string    `json:"chat_id"`
	CallerID  string    `json:"caller_id"`
	Timestamp time.Time `json:"timestamp"`
}

const subscriberBuffer = 16

// Hub routes events to per-user subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a listener for one user. The returned cancel func
// must be called when the listener goes away; the channel is closed then.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			if _, present := set[ch]; present {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of the user without
// blocking; slow subscribers drop it.
func (h *Hub) Publish(userID string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
			log.Warn().
				Str("user_id", userID).
				Str("event", string(ev.Type)).
				Msg("subscriber buffer full, dropping event")
		}
	}
}

// SubscriberCount reports how many sockets are listening for a user.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
