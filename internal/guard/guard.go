// Package guard gates every host call behind a liveness latch.
package guard

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

// ErrNotLive is returned for operations attempted after the host was invalidated.
// Callers treat it as a silent abort.
var ErrNotLive = errors.New("host context is not live")

// Guard latches to not-live once the host reports invalidation and stays
// there until Rebuild.
type Guard struct {
	logger *zap.Logger
	probe  func() error

	mu         sync.Mutex
	live       bool
	generation uint64
}

// New creates a live guard. probe may be nil.
func New(logger *zap.Logger, probe func() error) *Guard {
	return &Guard{
		logger: logger,
		probe:  probe,
		live:   true,
	}
}

// IsLive reports whether host operations may proceed
func (g *Guard) IsLive() bool {
	g.mu.Lock()
	live := g.live
	g.mu.Unlock()
	if !live {
		return false
	}
	if g.probe == nil {
		return true
	}
	if err := g.probe(); err != nil {
		if errors.Is(err, core.ErrHostInvalidated) {
			g.latch("probe", err)
		} else {
			g.logger.Debug("Host probe failed", zap.Error(err))
		}
		return false
	}
	return true
}

// Do runs fn if the host is live. Invalidation errors from fn latch the guard
// and come back as ErrNotLive. Other errors are returned unchanged.
func (g *Guard) Do(op string, fn func() error) error {
	if !g.IsLive() {
		return ErrNotLive
	}
	err := fn()
	if err != nil && errors.Is(err, core.ErrHostInvalidated) {
		g.latch(op, err)
		return ErrNotLive
	}
	return err
}

// Rebuild restores liveness for a new watch
func (g *Guard) Rebuild() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.live = true
	g.generation++
}

// Generation counts rebuilds
func (g *Guard) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

func (g *Guard) latch(op string, err error) {
	g.mu.Lock()
	wasLive := g.live
	g.live = false
	g.mu.Unlock()
	if wasLive {
		g.logger.Info("Host context invalidated, pausing until rebuild",
			zap.String("operation", op),
			zap.Error(err))
	}
}
