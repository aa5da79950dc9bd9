package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a simple in-process store for local/dev use and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*CallSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*CallSession)}
}

func (s *MemoryStore) CreateSession(_ context.Context, sess CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.ChatID == sess.ChatID && existing.Active() {
			return ErrConflict
		}
	}
	s.sessions[sess.ID] = &sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return *sess, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, status Status, limit int) ([]CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallSession, 0, 8)
	for _, sess := range s.sessions {
		if sess.CallerID != userID && sess.ReceiverID != userID {
			continue
		}
		if status != "" && sess.Status != status {
			continue
		}
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Accept(_ context.Context, id, receiverID string, at time.Time) (CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Status != StatusPending || sess.ReceiverID != receiverID {
		return CallSession{}, ErrNotFound
	}
	sess.Status = StatusAccepted
	started := at
	sess.StartedAt = &started
	return *sess, nil
}

func (s *MemoryStore) Reject(_ context.Context, id, receiverID string) (CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Status != StatusPending || sess.ReceiverID != receiverID {
		return CallSession{}, ErrNotFound
	}
	sess.Status = StatusRejected
	return *sess, nil
}

func (s *MemoryStore) End(_ context.Context, id, requesterID string, at time.Time) (CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Status != StatusAccepted {
		return CallSession{}, ErrNotFound
	}
	if sess.CallerID != requesterID && sess.ReceiverID != requesterID {
		return CallSession{}, ErrNotFound
	}
	sess.Status = StatusEnded
	ended := at
	sess.EndedAt = &ended
	sess.DurationMinutes = durationMinutes(sess.StartedAt, ended)
	return *sess, nil
}

func (s *MemoryStore) ExpirePending(_ context.Context, cutoff time.Time) ([]CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []CallSession
	for _, sess := range s.sessions {
		if sess.Status == StatusPending && sess.CreatedAt.Before(cutoff) {
			sess.Status = StatusRejected
			expired = append(expired, *sess)
		}
	}
	return expired, nil
}

func (s *MemoryStore) Close() error { return nil }
