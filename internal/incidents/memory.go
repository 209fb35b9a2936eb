package incidents

import (
	"context"
	"sort"
	"sync"
)

// InMemory is a mutex-guarded incident store for tests and local runs.
type InMemory struct {
	mu   sync.RWMutex
	byID map[string]Incident
}

// NewInMemory returns an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[string]Incident)}
}

func (s *InMemory) Create(_ context.Context, inc Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[inc.ID] = inc
	return nil
}

func (s *InMemory) Get(_ context.Context, id string) (Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.byID[id]
	if !ok {
		return Incident{}, ErrNotFound
	}
	return inc, nil
}

func (s *InMemory) Put(_ context.Context, inc Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[inc.ID]; !ok {
		return ErrNotFound
	}
	s.byID[inc.ID] = inc
	return nil
}

func (s *InMemory) List(_ context.Context) ([]Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Incident, 0, len(s.byID))
	for _, inc := range s.byID {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
