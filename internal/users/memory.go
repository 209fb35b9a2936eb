package users

import (
	"context"
	"sort"
	"sync"
)

// InMemory is a mutex-guarded account store for tests and local runs.
type InMemory struct {
	mu   sync.RWMutex
	byEm map[string]User
}

// NewInMemory returns an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{byEm: make(map[string]User)}
}

func (s *InMemory) Create(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NormalizeEmail(u.Email)
	if _, ok := s.byEm[key]; ok {
		return ErrAlreadyExists
	}
	s.byEm[key] = u
	return nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEm[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *InMemory) List(_ context.Context, role string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.byEm))
	for _, u := range s.byEm {
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
