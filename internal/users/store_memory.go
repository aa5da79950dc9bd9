package users

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a simple in-process store for local/dev use and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (s *MemoryStore) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	out := *u
	out.DeviceTokens = slices.Clone(u.DeviceTokens)
	return out, nil
}

func (s *MemoryStore) AnonymousIDTaken(_ context.Context, anonymousID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.AnonymousID == anonymousID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) TouchLastActive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastActive = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AddDeviceToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	if slices.Contains(u.DeviceTokens, token) {
		return nil
	}
	u.DeviceTokens = append(u.DeviceTokens, token)
	return nil
}

func (s *MemoryStore) DeviceTokens(_ context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(u.DeviceTokens), nil
}

func (s *MemoryStore) Close() error { return nil }
