package calls

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusEnded    Status = "ended"
)

var (
	// ErrNotFound covers both a missing session and a session the caller
	// is not allowed to act on; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("call session not found")
	// ErrConflict means the chat already has a pending or accepted session.
	ErrConflict = errors.New("active call session already exists for chat")
)

// CallSession is one call attempt between two chat participants.
type CallSession struct {
	ID                string     `json:"id"`
	ChatID            string     `json:"chat_id"`
	CallerID          string     `json:"caller_id"`
	CallerDisplayName string     `json:"caller_display_name"`
	ReceiverID        string     `json:"receiver_id"`
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	DurationMinutes   int        `json:"duration_minutes"`
}

// Active reports whether the session still blocks a new call on its chat.
func (s CallSession) Active() bool {
	return s.Status == StatusPending || s.Status == StatusAccepted
}

// RespondAction is the receiver's answer to a pending session.
type RespondAction string

const (
	ActionAccept RespondAction = "accept"
	ActionReject RespondAction = "reject"
)

func ParseRespondAction(raw string) (RespondAction, bool) {
	switch RespondAction(raw) {
	case ActionAccept:
		return ActionAccept, true
	case ActionReject:
		return ActionReject, true
	default:
		return "", false
	}
}
