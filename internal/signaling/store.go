package signaling

import (
	"context"
	"time"
)

// Store persists signaling records. Expiry is enforced lazily by the
// queries themselves; DeleteExpired exists purely for storage hygiene.
type Store interface {
	Save(ctx context.Context, rec Record) error

	// Latest returns the newest record of the kind for the chat that is
	// visible to the reader (sender differs, not yet expired at now).
	// ErrNotFound when nothing qualifies; a later deposit simply shadows
	// earlier ones.
	Latest(ctx context.Context, chatID string, kind Kind, readerID string, now time.Time) (Record, error)

	// VisibleCandidates returns every unexpired candidate for the chat
	// visible to the reader, in insertion order. Empty slice, not error,
	// when there are none.
	VisibleCandidates(ctx context.Context, chatID, readerID string, now time.Time) ([]Record, error)

	// DeleteExpired removes records past their expiry and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	Close() error
}
