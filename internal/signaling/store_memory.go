package signaling

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a simple in-process store for local/dev use and tests.
// Records are appended per chat; queries filter for visibility and expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ChatID] = append(s.records[rec.ChatID], rec)
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, chatID string, kind Kind, readerID string, now time.Time) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[chatID]
	for i := len(arr) - 1; i >= 0; i-- {
		rec := arr[i]
		if rec.Kind != kind || rec.SenderID == readerID || rec.expired(now) {
			continue
		}
		return rec, nil
	}
	return Record{}, ErrNotFound
}

func (s *MemoryStore) VisibleCandidates(_ context.Context, chatID, readerID string, now time.Time) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, 8)
	for _, rec := range s.records[chatID] {
		if rec.Kind != KindCandidate || rec.SenderID == readerID || rec.expired(now) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for chatID, arr := range s.records {
		kept := arr[:0]
		for _, rec := range arr {
			if rec.expired(now) {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(s.records, chatID)
			continue
		}
		s.records[chatID] = kept
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }
