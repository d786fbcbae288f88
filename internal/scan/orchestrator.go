// Package scan runs classification requests with at most one in flight.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/metrics"
	"github.com/mikey/mail-shield/internal/utils"
)

const (
	// DefaultTimeout bounds every classification request
	DefaultTimeout = 15 * time.Second
	// DefaultMaxBodyChars bounds the body sent to the classifier
	DefaultMaxBodyChars = 3000
)

// State of the orchestrator
type State int

const (
	Idle State = iota
	Requesting
)

func (s State) String() string {
	if s == Requesting {
		return "requesting"
	}
	return "idle"
}

// Options configures an Orchestrator
type Options struct {
	Timeout      time.Duration
	MaxBodyChars int
}

// DeliverFunc receives the result of a scan attempt that was not superseded
type DeliverFunc func(id uint64, result core.ScanResult)

// Orchestrator owns the single in-flight classification slot. A new Scan
// cancels the previous attempt, so the newest trigger always wins.
type Orchestrator struct {
	classifier core.Classifier
	opts       Options
	text       *utils.TextProcessor
	metrics    *metrics.Recorder
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	seq     uint64
	current uint64
	cancel  context.CancelFunc
	deliver DeliverFunc
}

// New creates a new orchestrator
func New(
	classifier core.Classifier,
	opts Options,
	text *utils.TextProcessor,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyChars <= 0 {
		opts.MaxBodyChars = DefaultMaxBodyChars
	}
	return &Orchestrator{
		classifier: classifier,
		opts:       opts,
		text:       text,
		metrics:    recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// SetDeliver installs the result callback
func (o *Orchestrator) SetDeliver(fn DeliverFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliver = fn
}

// Scan starts an attempt for req and returns its id. Incomplete requests are
// dropped and return 0.
func (o *Orchestrator) Scan(req core.ScanRequest) uint64 {
	if !req.Complete() {
		o.logger.Debug("Dropping incomplete scan request",
			zap.Bool("has_subject", req.Subject != ""),
			zap.Bool("has_sender", req.Sender != ""),
			zap.Bool("has_body", req.Body != ""))
		return 0
	}

	o.mu.Lock()
	if o.cancel != nil {
		o.logger.Debug("Superseding in-flight scan", zap.Uint64("scan_id", o.current))
		o.cancel()
	}
	o.seq++
	id := o.seq
	ctx, cancel := context.WithCancel(context.Background())
	o.current = id
	o.cancel = cancel
	o.mu.Unlock()

	go o.run(ctx, cancel, id, req)
	return id
}

// Cancel aborts the in-flight attempt, if any. Its result is never delivered.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.logger.Debug("Cancelled in-flight scan", zap.Uint64("scan_id", o.current))
	}
	o.current = 0
	o.cancel = nil
}

// State reports whether an attempt is in flight
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != 0 {
		return Requesting
	}
	return Idle
}

// Current returns the id of the in-flight attempt, or 0
func (o *Orchestrator) Current() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, id uint64, req core.ScanRequest) {
	defer cancel()

	result := o.Execute(ctx, req)

	o.mu.Lock()
	if o.current != id {
		o.mu.Unlock()
		o.logger.Debug("Discarding superseded scan result", zap.Uint64("scan_id", id))
		return
	}
	o.current = 0
	o.cancel = nil
	deliver := o.deliver
	o.mu.Unlock()

	if deliver != nil {
		deliver(id, result)
	}
}

type classification struct {
	verdict *core.Verdict
	err     error
}

// Execute runs one classification synchronously under the hard timeout and
// normalizes every outcome into a ScanResult. It never returns an error.
func (o *Orchestrator) Execute(ctx context.Context, req core.ScanRequest) core.ScanResult {
	start := o.now()
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	sent := core.ScanRequest{
		Subject: req.Subject,
		Sender:  req.Sender,
		Body:    o.text.ProcessText(req.Body, o.opts.MaxBodyChars),
	}

	// The classifier may ignore ctx, so the timeout is enforced here too.
	done := make(chan classification, 1)
	go func() {
		v, err := o.classifier.Classify(ctx, &sent)
		done <- classification{verdict: v, err: err}
	}()

	var c classification
	select {
	case c = <-done:
	case <-ctx.Done():
		c.err = ctx.Err()
	}

	result := o.normalize(ctx, c, o.now().Sub(start))
	o.metrics.ObserveScan(result)

	fields := []zap.Field{
		zap.String("outcome", result.Outcome.String()),
		zap.String("label", result.Label),
		zap.Duration("timing", result.Timing),
	}
	if result.MLTiming != nil {
		fields = append(fields, zap.Duration("ml_timing", *result.MLTiming))
	}
	if c.err != nil {
		fields = append(fields, zap.Error(c.err))
	}
	if result.Outcome == core.OutcomeCompleted {
		o.logger.Info("Scan completed", fields...)
	} else {
		o.logger.Warn("Scan did not complete", fields...)
	}

	return result
}

func (o *Orchestrator) normalize(ctx context.Context, c classification, elapsed time.Duration) core.ScanResult {
	result := core.ScanResult{
		Status:  core.StatusUnknown,
		Outcome: core.OutcomeFailed,
		Timing:  elapsed,
	}

	if c.err == nil && (c.verdict == nil || strings.TrimSpace(c.verdict.Label) == "") {
		c.err = core.ErrMalformedResponse
	}

	if c.err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(c.err, context.DeadlineExceeded):
			result.Outcome = core.OutcomeTimedOut
			result.Reason = fmt.Sprintf("scan timed out after %s", o.opts.Timeout)
		case errors.Is(c.err, context.Canceled):
			result.Reason = "scan cancelled"
		default:
			result.Reason = failureReason(c.err)
		}
		return result
	}

	v := c.verdict
	result.Outcome = core.OutcomeCompleted
	result.Label = strings.ToLower(strings.TrimSpace(v.Label))
	result.Status = core.StatusFromLabel(result.Label)
	result.Reason = v.Reason
	result.Risk = v.Risk
	result.MLTiming = v.MLTiming
	result.Model = v.Model
	return result
}

func failureReason(err error) string {
	var se *core.StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Sprintf("classifier returned HTTP %d", se.Code)
	case errors.Is(err, core.ErrBackendOffline):
		return "backend offline"
	case errors.Is(err, core.ErrMalformedResponse):
		return "malformed classifier response"
	default:
		return "classifier error: " + err.Error()
	}
}
