package calls

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kriptonit/backend/internal/events"
	"github.com/kriptonit/backend/internal/notify"
	"github.com/kriptonit/backend/internal/observability"
)

// Directory resolves the counterpart of a chat thread. Implemented by the
// chat store; the manager never sees chat internals beyond this.
type Directory interface {
	// Participants returns the other participants of the chat as seen by
	// userID. ErrNotFound-compatible errors mean the chat does not exist;
	// a participant check failure surfaces as chat.ErrNotParticipant.
	Participants(ctx context.Context, chatID, userID string) ([]string, error)
}

// TokenSource lists the registered device tokens of a user.
type TokenSource interface {
	DeviceTokens(ctx context.Context, userID string) ([]string, error)
}

// Notifier is the fire-and-forget hand-off to the push delivery path.
type Notifier interface {
	Enqueue(job notify.Job) bool
}

// Manager owns the call session state machine.
type Manager struct {
	store    Store
	dir      Directory
	tokens   TokenSource
	notifier Notifier
	hub      *events.Hub
	metrics  *observability.Metrics

	// ringTimeout auto-rejects sessions stuck in pending; 0 disables.
	ringTimeout time.Duration

	now func() time.Time
}

func NewManager(store Store, dir Directory, tokens TokenSource, notifier Notifier, hub *events.Hub, metrics *observability.Metrics, ringTimeout time.Duration) *Manager {
	return &Manager{
		store:       store,
		dir:         dir,
		tokens:      tokens,
		notifier:    notifier,
		hub:         hub,
		metrics:     metrics,
		ringTimeout: ringTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// OpenSession creates a pending session against the chat. The receiver is
// derived from the chat directory, never supplied by the caller. Exactly
// one of two concurrent opens on the same chat succeeds; the other sees
// ErrConflict from the store's atomic conditional insert.
func (m *Manager) OpenSession(ctx context.Context, chatID, callerID, callerName string) (CallSession, error) {
	others, err := m.dir.Participants(ctx, chatID, callerID)
	if err != nil {
		return CallSession{}, err
	}
	if len(others) == 0 {
		return CallSession{}, ErrNotFound
	}
	receiverID := others[0]

	sess := CallSession{
		ID:                uuid.NewString(),
		ChatID:            chatID,
		CallerID:          callerID,
		CallerDisplayName: callerName,
		ReceiverID:        receiverID,
		Status:            StatusPending,
		CreatedAt:         m.now(),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return CallSession{}, err
	}

	m.observe("requested")
	m.publish(receiverID, events.TypeCallRequested, sess)
	m.fanOut(receiverID, "Incoming call", "You have an incoming call")

	return sess, nil
}

// Respond applies the receiver's accept or reject to a pending session.
func (m *Manager) Respond(ctx context.Context, sessionID, responderID string, action RespondAction) (CallSession, error) {
	var (
		sess CallSession
		err  error
	)
	switch action {
	case ActionAccept:
		sess, err = m.store.Accept(ctx, sessionID, responderID, m.now())
	case ActionReject:
		sess, err = m.store.Reject(ctx, sessionID, responderID)
	default:
		return CallSession{}, fmt.Errorf("invalid respond action %q", action)
	}
	if err != nil {
		return CallSession{}, err
	}

	if action == ActionAccept {
		m.observe("accepted")
		m.publish(sess.CallerID, events.TypeCallAccepted, sess)
		m.fanOut(sess.CallerID, "Call started", "Your call has started")
	} else {
		m.observe("rejected")
		m.publish(sess.CallerID, events.TypeCallRejected, sess)
	}
	return sess, nil
}

// EndSession terminates an accepted session on behalf of either
// participant and returns the session with its computed duration.
func (m *Manager) EndSession(ctx context.Context, sessionID, requesterID string) (CallSession, error) {
	sess, err := m.store.End(ctx, sessionID, requesterID, m.now())
	if err != nil {
		return CallSession{}, err
	}

	m.observe("ended")
	counterpart := sess.CallerID
	if requesterID == sess.CallerID {
		counterpart = sess.ReceiverID
	}
	m.publish(counterpart, events.TypeCallEnded, sess)

	return sess, nil
}

// GetSession returns the session only to its two participants.
func (m *Manager) GetSession(ctx context.Context, sessionID, userID string) (CallSession, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return CallSession{}, err
	}
	if sess.CallerID != userID && sess.ReceiverID != userID {
		return CallSession{}, ErrNotFound
	}
	return sess, nil
}

// ListByUser lists the user's sessions, newest first.
func (m *Manager) ListByUser(ctx context.Context, userID string, status Status, limit int) ([]CallSession, error) {
	return m.store.ListByUser(ctx, userID, status, limit)
}

// StartJanitor periodically rejects sessions that have been ringing
// longer than the configured timeout. No-op when the timeout is 0.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if m.ringTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireStalePending(ctx)
			}
		}
	}()
}

func (m *Manager) expireStalePending(ctx context.Context) {
	cutoff := m.now().Add(-m.ringTimeout)
	expired, err := m.store.ExpirePending(ctx, cutoff)
	if err != nil {
		log.Err(err).Msg("expire pending sessions failed")
		return
	}
	for _, sess := range expired {
		m.observe("ring_timeout")
		m.publish(sess.CallerID, events.TypeCallRejected, sess)
		m.publish(sess.ReceiverID, events.TypeCallRejected, sess)
	}
}

// fanOut enqueues one push job per registered device of the user. A user
// with no tokens yields no jobs; lookup failures are logged and swallowed
// because push never gates the session flow.
func (m *Manager) fanOut(userID, title, body string) {
	if m.tokens == nil || m.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tokens, err := m.tokens.DeviceTokens(ctx, userID)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("device token lookup failed")
		return
	}
	for _, token := range tokens {
		m.notifier.Enqueue(notify.Job{
			UserID: userID,
			Title:  title,
			Body:   body,
			Token:  token,
		})
	}
}

func (m *Manager) publish(userID string, t events.EventType, sess CallSession) {
	if m.hub == nil {
		return
	}
	m.hub.Publish(userID, events.Event{
		Type:      t,
		SessionID: sess.ID,
		ChatID:    sess.ChatID,
		CallerID:  sess.CallerID,
	})
}

func (m *Manager) observe(event string) {
	if m.metrics == nil {
		return
	}
	m.metrics.CallEvents.WithLabelValues(event).Inc()
	switch event {
	case "requested":
		m.metrics.ActiveCalls.Inc()
	case "rejected", "ended", "ring_timeout":
		m.metrics.ActiveCalls.Dec()
	}
}
