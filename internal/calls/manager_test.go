package calls

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kriptonit/backend/internal/chat"
	"github.com/kriptonit/backend/internal/events"
	"github.com/kriptonit/backend/internal/notify"
)

type fakeDirectory struct {
	chats map[string][]string
}

func (d *fakeDirectory) Participants(_ context.Context, chatID, userID string) ([]string, error) {
	participants, ok := d.chats[chatID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	member := false
	others := make([]string, 0, len(participants))
	for _, p := range participants {
		if p == userID {
			member = true
			continue
		}
		others = append(others, p)
	}
	if !member {
		return nil, chat.ErrNotParticipant
	}
	return others, nil
}

type fakeTokens struct {
	tokens map[string][]string
}

func (t *fakeTokens) DeviceTokens(_ context.Context, userID string) ([]string, error) {
	return t.tokens[userID], nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	jobs []notify.Job
}

func (n *fakeNotifier) Enqueue(job notify.Job) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return true
}

func (n *fakeNotifier) all() []notify.Job {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Job, len(n.jobs))
	copy(out, n.jobs)
	return out
}

func newTestManager() (*Manager, *fakeNotifier) {
	dir := &fakeDirectory{chats: map[string][]string{
		"c1": {"u1", "u2"},
	}}
	tokens := &fakeTokens{tokens: map[string][]string{
		"u2": {"device-a", "device-b"},
	}}
	notifier := &fakeNotifier{}
	m := NewManager(NewMemoryStore(), dir, tokens, notifier, events.NewHub(), nil, 0)
	return m, notifier
}

func TestOpenSessionDerivesReceiver(t *testing.T) {
	m, notifier := newTestManager()

	sess, err := m.OpenSession(context.Background(), "c1", "u1", "Anon #7")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if sess.Status != StatusPending {
		t.Fatalf("status = %q, want %q", sess.Status, StatusPending)
	}
	if sess.ReceiverID != "u2" {
		t.Fatalf("receiver = %q, want %q", sess.ReceiverID, "u2")
	}
	if sess.CallerID != "u1" {
		t.Fatalf("caller = %q, want %q", sess.CallerID, "u1")
	}

	jobs := notifier.all()
	if len(jobs) != 2 {
		t.Fatalf("enqueued jobs = %d, want 2 (one per device)", len(jobs))
	}
	if jobs[0].UserID != "u2" {
		t.Fatalf("job user = %q, want %q", jobs[0].UserID, "u2")
	}
}

func TestOpenSessionFailsForOutsider(t *testing.T) {
	m, _ := newTestManager()

	if _, err := m.OpenSession(context.Background(), "c1", "u3", ""); err == nil {
		t.Fatalf("OpenSession() by non-participant should fail")
	}
	if _, err := m.OpenSession(context.Background(), "missing", "u1", ""); err == nil {
		t.Fatalf("OpenSession() on unknown chat should fail")
	}
}

func TestOpenSessionConflict(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.OpenSession(ctx, "c1", "u1", ""); err != nil {
		t.Fatalf("first OpenSession() error = %v", err)
	}
	if _, err := m.OpenSession(ctx, "c1", "u2", ""); err != ErrConflict {
		t.Fatalf("second OpenSession() error = %v, want ErrConflict", err)
	}
}

func TestOpenSessionConcurrentDuplicates(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.OpenSession(ctx, "c1", "u1", "")
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch err {
		case nil:
			wins++
		case ErrConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("successful opens = %d, want exactly 1", wins)
	}
	if conflicts != attempts-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, attempts-1)
	}
}

func TestRespondAcceptSetsStartedAt(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	sess, err := m.OpenSession(ctx, "c1", "u1", "")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	accepted, err := m.Respond(ctx, sess.ID, "u2", ActionAccept)
	if err != nil {
		t.Fatalf("Respond(accept) error = %v", err)
	}
	if accepted.Status != StatusAccepted {
		t.Fatalf("status = %q, want %q", accepted.Status, StatusAccepted)
	}
	if accepted.StartedAt == nil {
		t.Fatalf("StartedAt should be set on accept")
	}
}

func TestRespondRequiresReceiver(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	sess, _ := m.OpenSession(ctx, "c1", "u1", "")

	// The caller cannot answer their own call, and an unknown id fails.
	if _, err := m.Respond(ctx, sess.ID, "u1", ActionAccept); err != ErrNotFound {
		t.Fatalf("Respond() by caller error = %v, want ErrNotFound", err)
	}
	if _, err := m.Respond(ctx, "missing", "u2", ActionAccept); err != ErrNotFound {
		t.Fatalf("Respond() on missing session error = %v, want ErrNotFound", err)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	sess, _ := m.OpenSession(ctx, "c1", "u1", "")
	if _, err := m.Respond(ctx, sess.ID, "u2", ActionReject); err != nil {
		t.Fatalf("Respond(reject) error = %v", err)
	}

	if _, err := m.Respond(ctx, sess.ID, "u2", ActionAccept); err != ErrNotFound {
		t.Fatalf("Respond() after reject error = %v, want ErrNotFound", err)
	}
	if _, err := m.EndSession(ctx, sess.ID, "u1"); err != ErrNotFound {
		t.Fatalf("EndSession() after reject error = %v, want ErrNotFound", err)
	}

	// A rejected session no longer blocks the chat.
	if _, err := m.OpenSession(ctx, "c1", "u2", ""); err != nil {
		t.Fatalf("OpenSession() after reject error = %v", err)
	}
}

func TestEndSessionComputesDuration(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	sess, _ := m.OpenSession(ctx, "c1", "u1", "")
	if _, err := m.Respond(ctx, sess.ID, "u2", ActionAccept); err != nil {
		t.Fatalf("Respond(accept) error = %v", err)
	}

	m.now = func() time.Time { return base.Add(125 * time.Second) }
	ended, err := m.EndSession(ctx, sess.ID, "u2")
	if err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("status = %q, want %q", ended.Status, StatusEnded)
	}
	if ended.DurationMinutes != 2 {
		t.Fatalf("duration = %d minutes, want 2", ended.DurationMinutes)
	}
	if ended.EndedAt == nil {
		t.Fatalf("EndedAt should be set")
	}
}

func TestEndSessionRequiresAccepted(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	sess, _ := m.OpenSession(ctx, "c1", "u1", "")
	if _, err := m.EndSession(ctx, sess.ID, "u1"); err != ErrNotFound {
		t.Fatalf("EndSession() on pending error = %v, want ErrNotFound", err)
	}

	if _, err := m.Respond(ctx, sess.ID, "u2", ActionAccept); err != nil {
		t.Fatalf("Respond(accept) error = %v", err)
	}
	if _, err := m.EndSession(ctx, sess.ID, "u3"); err != ErrNotFound {
		t.Fatalf("EndSession() by outsider error = %v, want ErrNotFound", err)
	}
	if _, err := m.EndSession(ctx, sess.ID, "u1"); err != nil {
		t.Fatalf("EndSession() by caller error = %v", err)
	}
	if _, err := m.EndSession(ctx, sess.ID, "u1"); err != ErrNotFound {
		t.Fatalf("EndSession() twice error = %v, want ErrNotFound", err)
	}
}

func TestJanitorExpiresStalePending(t *testing.T) {
	dir := &fakeDirectory{chats: map[string][]string{"c1": {"u1", "u2"}}}
	m := NewManager(NewMemoryStore(), dir, nil, nil, events.NewHub(), nil, 50*time.Millisecond)
	ctx := context.Background()

	sess, err := m.OpenSession(ctx, "c1", "u1", "")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	janitorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(janitorCtx, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := m.store.GetSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if got.Status == StatusRejected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session not auto-rejected, status = %q", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListByUserFiltersStatus(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	sess, _ := m.OpenSession(ctx, "c1", "u1", "")
	if _, err := m.Respond(ctx, sess.ID, "u2", ActionReject); err != nil {
		t.Fatalf("Respond(reject) error = %v", err)
	}
	second, err := m.OpenSession(ctx, "c1", "u1", "")
	if err != nil {
		t.Fatalf("second OpenSession() error = %v", err)
	}

	pending, err := m.ListByUser(ctx, "u2", StatusPending, 10)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("pending list = %+v, want only session %s", pending, second.ID)
	}

	all, err := m.ListByUser(ctx, "u1", "", 10)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all sessions = %d, want 2", len(all))
	}
}
