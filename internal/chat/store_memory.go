package chat

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryStore is a simple in-process store for local/dev use and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]*Chat
	messages map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]*Chat),
		messages: make(map[string][]Message),
	}
}

func (s *MemoryStore) CreateChat(_ context.Context, c Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[c.ID] = &c
	return nil
}

func (s *MemoryStore) GetChat(_ context.Context, id string) (Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return cloneChat(c), nil
}

func (s *MemoryStore) FindActiveByParticipants(_ context.Context, a, b string) (Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chats {
		if c.Active && slices.Contains(c.Participants, a) && slices.Contains(c.Participants, b) {
			return cloneChat(c), nil
		}
	}
	return Chat{}, ErrNotFound
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chat, 0, 8)
	for _, c := range s.chats {
		if c.Active && slices.Contains(c.Participants, userID) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[msg.ChatID]
	if !ok {
		return ErrNotFound
	}
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	if msg.CreatedAt.After(c.LastMessageAt) {
		c.LastMessageAt = msg.CreatedAt
	}
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, chatID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.messages[chatID]
	if limit > 0 && len(arr) > limit {
		arr = arr[:limit]
	}
	out := make([]Message, len(arr))
	copy(out, arr)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneChat(c *Chat) Chat {
	out := *c
	out.Participants = slices.Clone(c.Participants)
	return out
}
