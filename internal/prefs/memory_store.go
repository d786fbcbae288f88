package prefs

import (
	"context"
	"sync"
)

// MemoryStore keeps preferences in process
type MemoryStore struct {
	mu   sync.Mutex
	p    Preferences
	subs subscribers
}

// NewMemoryStore creates a store seeded with p
func NewMemoryStore(p Preferences) *MemoryStore {
	return &MemoryStore{p: p}
}

// Load returns the current preferences
func (s *MemoryStore) Load(ctx context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p, nil
}

// Save stores p and notifies subscribers when it differs from the current value
func (s *MemoryStore) Save(ctx context.Context, p Preferences) error {
	s.mu.Lock()
	changed := s.p != p
	s.p = p
	s.mu.Unlock()

	if changed {
		s.subs.notify(p)
	}
	return nil
}

// Subscribe registers a change listener
func (s *MemoryStore) Subscribe(fn func(Preferences)) func() {
	return s.subs.add(fn)
}
