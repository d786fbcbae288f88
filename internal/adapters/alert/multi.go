package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mikey/mail-shield/internal/core"
)

// Named pairs a publisher with a name for error reporting
type Named struct {
	Name      string
	Publisher core.AlertPublisher
}

// Multi fans an alert out to every sink concurrently
type Multi struct {
	sinks []Named
}

// NewMulti creates a fan-out publisher
func NewMulti(sinks ...Named) *Multi {
	return &Multi{sinks: sinks}
}

// Len returns the number of sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Publish implements core.AlertPublisher. Every sink is attempted and their
// errors are joined.
func (m *Multi) Publish(ctx context.Context, alert core.Alert) error {
	errs := make([]error, len(m.sinks))
	var wg sync.WaitGroup
	for i, s := range m.sinks {
		wg.Add(1)
		go func(i int, s Named) {
			defer wg.Done()
			if err := s.Publisher.Publish(ctx, alert); err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name, err)
			}
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}
