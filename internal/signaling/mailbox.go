package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kriptonit/backend/internal/observability"
)

// Mailbox is the store-and-forward exchange for connection-setup payloads.
// Parties deposit offers, answers and routing candidates without needing
// the other side online; records self-expire and a reader never gets back
// their own deposit. Chat-membership authorization is the HTTP boundary's
// job, not the mailbox's.
type Mailbox struct {
	store        Store
	offerTTL     time.Duration
	candidateTTL time.Duration
	metrics      *observability.Metrics

	now func() time.Time
}

type Config struct {
	OfferTTL     time.Duration
	CandidateTTL time.Duration
}

func NewMailbox(store Store, cfg Config, metrics *observability.Metrics) *Mailbox {
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = 2 * time.Minute
	}
	if cfg.CandidateTTL <= 0 {
		cfg.CandidateTTL = 5 * time.Minute
	}
	return &Mailbox{
		store:        store,
		offerTTL:     cfg.OfferTTL,
		candidateTTL: cfg.CandidateTTL,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// DepositOffer stores the caller's session offer. A repeat deposit is a
// newer record; fetches see the latest one.
func (m *Mailbox) DepositOffer(ctx context.Context, chatID, senderID string, payload json.RawMessage) error {
	return m.deposit(ctx, chatID, senderID, KindOffer, payload, m.offerTTL)
}

// DepositAnswer stores the receiver's session answer.
func (m *Mailbox) DepositAnswer(ctx context.Context, chatID, senderID string, payload json.RawMessage) error {
	return m.deposit(ctx, chatID, senderID, KindAnswer, payload, m.offerTTL)
}

// DepositCandidate stores one routing candidate; candidates accumulate
// until they expire.
func (m *Mailbox) DepositCandidate(ctx context.Context, chatID, senderID string, payload json.RawMessage) error {
	return m.deposit(ctx, chatID, senderID, KindCandidate, payload, m.candidateTTL)
}

func (m *Mailbox) deposit(ctx context.Context, chatID, senderID string, kind Kind, payload json.RawMessage, ttl time.Duration) error {
	if emptyPayload(payload) {
		return ErrEmptyPayload
	}
	now := m.now()
	rec := Record{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := m.store.Save(ctx, rec); err != nil {
		m.observe(kind, "deposit_error")
		return err
	}
	m.observe(kind, "deposited")
	return nil
}

// FetchOffer returns the counterpart's latest unexpired offer.
func (m *Mailbox) FetchOffer(ctx context.Context, chatID, readerID string) (Record, error) {
	return m.fetchLatest(ctx, chatID, KindOffer, readerID)
}

// FetchAnswer returns the counterpart's latest unexpired answer.
func (m *Mailbox) FetchAnswer(ctx context.Context, chatID, readerID string) (Record, error) {
	return m.fetchLatest(ctx, chatID, KindAnswer, readerID)
}

func (m *Mailbox) fetchLatest(ctx context.Context, chatID string, kind Kind, readerID string) (Record, error) {
	rec, err := m.store.Latest(ctx, chatID, kind, readerID, m.now())
	if err != nil {
		m.observe(kind, "miss")
		return Record{}, err
	}
	m.observe(kind, "fetched")
	return rec, nil
}

// FetchCandidates returns the counterpart's unexpired candidates in
// insertion order; none is an empty slice, not an error.
func (m *Mailbox) FetchCandidates(ctx context.Context, chatID, readerID string) ([]Record, error) {
	recs, err := m.store.VisibleCandidates(ctx, chatID, readerID, m.now())
	if err != nil {
		return nil, err
	}
	m.observe(KindCandidate, "fetched")
	return recs, nil
}

// StartSweeper deletes expired records on the given interval. Purely a
// storage-hygiene measure; correctness never depends on it because every
// read filters by expiry itself.
func (m *Mailbox) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := m.store.DeleteExpired(ctx, m.now())
				if err != nil {
					log.Err(err).Msg("signaling sweep failed")
					continue
				}
				if removed > 0 {
					log.Debug().Int64("removed", removed).Msg("swept expired signaling records")
				}
			}
		}
	}()
}

func (m *Mailbox) observe(kind Kind, outcome string) {
	if m.metrics == nil {
		return
	}
	m.metrics.SignalingOps.WithLabelValues(string(kind), outcome).Inc()
}

func emptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return true
	}
	return bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}
