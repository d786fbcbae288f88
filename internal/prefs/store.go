// Package prefs holds the two user preferences that gate the monitor.
package prefs

import (
	"context"
	"sync"
)

// Preferences are the user-facing feature toggles
type Preferences struct {
	AutoScanEnabled  bool `yaml:"autoScanEnabled" json:"autoScanEnabled"`
	IoTAlertsEnabled bool `yaml:"iotAlertsEnabled" json:"iotAlertsEnabled"`
}

// Defaults returns the preferences used when nothing is stored
func Defaults() Preferences {
	return Preferences{AutoScanEnabled: true, IoTAlertsEnabled: true}
}

// Store loads, saves and watches preferences
type Store interface {
	Load(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
	// Subscribe registers fn for change notifications. fn may be called from
	// any goroutine.
	Subscribe(fn func(Preferences)) (unsubscribe func())
}

// subscribers is shared by the store implementations
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Preferences)
}

func (s *subscribers) add(fn func(Preferences)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Preferences))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers) notify(p Preferences) {
	s.mu.Lock()
	fns := make([]func(Preferences), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}
