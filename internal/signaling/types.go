package signaling

import (
	"encoding/json"
	"errors"
	"time"
)

// Kind distinguishes the three handshake payload variants.
type Kind string

const (
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindCandidate Kind = "candidate"
)

var (
	// ErrNotFound means no visible, unexpired record exists for the reader.
	ErrNotFound = errors.New("signaling record not found")
	// ErrEmptyPayload rejects a deposit with nothing in it; the payload is
	// otherwise opaque and never inspected here.
	ErrEmptyPayload = errors.New("signaling payload must not be empty")
)

// Record is one deposited handshake payload. Visibility rules: a reader
// never sees their own deposit, and never sees a record past ExpiresAt.
type Record struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chat_id"`
	SenderID  string          `json:"sender_id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (r Record) expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
