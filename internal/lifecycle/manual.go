package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

var (
	// ErrNoMessage is returned by ScanNow when no complete message is open
	ErrNoMessage = errors.New("no complete message in view")
	// ErrStopped is returned by ScanNow once the controller loop has exited
	ErrStopped = errors.New("lifecycle controller stopped")
)

// ScanNow classifies the message currently open in the host, whatever the
// auto-scan preference says. The snapshot is taken on the controller loop;
// the classification runs on the caller's goroutine and its result goes back
// to the caller only, leaving the dispatcher and the watch memory untouched.
func (c *Controller) ScanNow(ctx context.Context) (core.ScanResult, error) {
	type snapshot struct {
		content *core.ObservedContent
		err     error
	}
	done := make(chan snapshot, 1)

	c.post(func() {
		var content *core.ObservedContent
		err := c.guard.Do("manual snapshot", func() error {
			sctx, cancel := context.WithTimeout(c.ctx, c.snapshotTimeout)
			defer cancel()
			var err error
			content, err = c.host.Snapshot(sctx)
			return err
		})
		done <- snapshot{content: content, err: err}
	})

	var snap snapshot
	select {
	case snap = <-done:
	case <-c.stopped:
		return core.ScanResult{}, ErrStopped
	case <-ctx.Done():
		return core.ScanResult{}, ctx.Err()
	}

	if snap.err != nil {
		return core.ScanResult{}, fmt.Errorf("failed to read open message: %w", snap.err)
	}
	if snap.content == nil {
		return core.ScanResult{}, ErrNoMessage
	}
	req := snap.content.Request()
	if !req.Complete() {
		return core.ScanResult{}, ErrNoMessage
	}

	c.logger.Info("Manual scan requested", zap.String("sender", req.Sender))
	return c.orchestrator.Execute(ctx, req), nil
}
