package calls

import (
	"context"
	"time"
)

// Store persists call sessions. Every conditional transition is a single
// atomic operation against the backing store: the precondition is part of
// the query, so a session that is not in the expected state (or does not
// belong to the acting user) reads as absent rather than as a state error.
type Store interface {
	// CreateSession inserts a new pending session. Returns ErrConflict when
	// the chat already holds a pending or accepted session; the check and
	// the insert are one atomic step.
	CreateSession(ctx context.Context, s CallSession) error

	GetSession(ctx context.Context, id string) (CallSession, error)

	// ListByUser returns sessions in which the user is caller or receiver,
	// newest first. An empty status matches all states.
	ListByUser(ctx context.Context, userID string, status Status, limit int) ([]CallSession, error)

	// Accept transitions pending -> accepted and stamps StartedAt, provided
	// the session is pending and receiverID matches. ErrNotFound otherwise.
	Accept(ctx context.Context, id, receiverID string, at time.Time) (CallSession, error)

	// Reject transitions pending -> rejected under the same precondition.
	Reject(ctx context.Context, id, receiverID string) (CallSession, error)

	// End transitions accepted -> ended for either participant, stamps
	// EndedAt and computes the whole-minute duration in the same write.
	End(ctx context.Context, id, requesterID string, at time.Time) (CallSession, error)

	// ExpirePending rejects every session still pending since before the
	// cutoff and returns the affected sessions.
	ExpirePending(ctx context.Context, cutoff time.Time) ([]CallSession, error)

	Close() error
}

// durationMinutes computes the stored whole-minute duration. A missing
// StartedAt yields 0, which cannot happen for an accepted session but is
// handled rather than trusted.
func durationMinutes(startedAt *time.Time, endedAt time.Time) int {
	if startedAt == nil {
		return 0
	}
	d := endedAt.Sub(*startedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
