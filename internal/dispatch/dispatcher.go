// Package dispatch fans scan outcomes out to display surfaces and IoT alert sinks.
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/metrics"
)

const (
	// DefaultTopic is the IoT topic used when none is configured
	DefaultTopic = "shieldbox/email_scan"
	// DefaultPublishTimeout bounds a single alert publish
	DefaultPublishTimeout = 5 * time.Second
)

// Options configures a Dispatcher
type Options struct {
	Topic          string
	PublishTimeout time.Duration
}

// Dispatcher updates every attached UI sink and publishes IoT alerts.
// Dispatch calls must come from a single goroutine since they share the
// watch memory. Sink attachment may happen from any goroutine.
// Alerts reach the publisher one at a time, in dispatch order.
type Dispatcher struct {
	mem       *core.DispatcherMemory
	publisher core.AlertPublisher
	opts      Options
	metrics   *metrics.Recorder
	logger    *zap.Logger

	alertGate func() bool
	live      func() bool
	spawn     func(func())
	inflight  sync.WaitGroup

	queueMu  sync.Mutex
	queue    []core.Alert
	draining bool

	mu    sync.Mutex
	sinks []core.UISink
	last  *core.UIMessage
}

// New creates a dispatcher. publisher may be nil when no IoT sink is configured.
func New(
	mem *core.DispatcherMemory,
	publisher core.AlertPublisher,
	opts Options,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) *Dispatcher {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	return &Dispatcher{
		mem:       mem,
		publisher: publisher,
		opts:      opts,
		metrics:   recorder,
		logger:    logger,
		spawn:     func(fn func()) { go fn() },
	}
}

// SetAlertGate installs the IoT preference check
func (d *Dispatcher) SetAlertGate(fn func() bool) {
	d.alertGate = fn
}

// SetLiveness ties dispatching to the host liveness check
func (d *Dispatcher) SetLiveness(fn func() bool) {
	d.live = fn
}

// DispatchResult displays a scan result and publishes its label. Failed and
// timed out scans only reach the UI.
func (d *Dispatcher) DispatchResult(r core.ScanResult) {
	message := FormatResult(r)
	if r.Outcome != core.OutcomeCompleted {
		d.dispatch(message, nil, "")
		return
	}
	label, _ := ParseLabel(message)
	d.dispatch(message, r.Risk, label)
}

// DispatchNoMail displays and publishes the no_mail sentinel
func (d *Dispatcher) DispatchNoMail() {
	d.dispatch(NoMailMessage, nil, core.NoMail)
}

// dispatch updates the UI and publishes label. An empty label skips the IoT sink.
func (d *Dispatcher) dispatch(message string, risk *float64, label core.AlertLabel) {
	if d.live != nil && !d.live() {
		d.logger.Debug("Host not live, dropping dispatch", zap.String("message", message))
		return
	}

	d.updateUI(core.UIMessage{Action: core.DisplayResultAction, Result: message})

	if label == "" {
		d.logger.Debug("No alert label for message, skipping IoT publish", zap.String("message", message))
		return
	}

	if d.alertGate != nil && !d.alertGate() {
		d.metrics.AlertResult(label, metrics.AlertSkipped)
		return
	}

	// Only repeated no_mail signals are suppressed.
	if label == d.mem.LastAlertLabel && label == core.NoMail {
		d.logger.Debug("Suppressing repeated alert", zap.String("label", string(label)))
		d.metrics.AlertResult(label, metrics.AlertSuppressed)
		return
	}
	d.mem.LastAlertLabel = label

	if d.publisher == nil {
		return
	}
	d.enqueue(core.Alert{Message: string(label), Topic: d.opts.Topic, Risk: risk})
}

// enqueue appends an alert and starts the drain worker if none is running
func (d *Dispatcher) enqueue(alert core.Alert) {
	d.inflight.Add(1)

	d.queueMu.Lock()
	d.queue = append(d.queue, alert)
	if d.draining {
		d.queueMu.Unlock()
		return
	}
	d.draining = true
	d.queueMu.Unlock()

	d.spawn(d.drain)
}

// drain publishes queued alerts in order and exits once the queue is empty
func (d *Dispatcher) drain() {
	for {
		d.queueMu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.queueMu.Unlock()
			return
		}
		alert := d.queue[0]
		d.queue = d.queue[1:]
		d.queueMu.Unlock()

		d.publish(alert)
		d.inflight.Done()
	}
}

// Wait blocks until every queued publish has finished
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) publish(alert core.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.PublishTimeout)
	defer cancel()

	label := core.AlertLabel(alert.Message)
	if err := d.publisher.Publish(ctx, alert); err != nil {
		d.logger.Warn("Failed to publish alert",
			zap.String("label", alert.Message),
			zap.String("topic", alert.Topic),
			zap.Error(err))
		d.metrics.AlertResult(label, metrics.AlertFailed)
		return
	}
	d.logger.Debug("Published alert", zap.String("label", alert.Message), zap.String("topic", alert.Topic))
	d.metrics.AlertResult(label, metrics.AlertPublished)
}

func (d *Dispatcher) updateUI(msg core.UIMessage) {
	d.mu.Lock()
	d.last = &msg
	sinks := append([]core.UISink(nil), d.sinks...)
	d.mu.Unlock()

	for _, s := range sinks {
		s.Display(msg)
	}
	d.metrics.UIUpdated()
}

// AttachUI registers a display surface and replays the last message to it
func (d *Dispatcher) AttachUI(sink core.UISink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, sink)
	var last *core.UIMessage
	if d.last != nil {
		m := *d.last
		last = &m
	}
	d.mu.Unlock()

	if last != nil {
		sink.Display(*last)
	}
}

// DetachUI removes a display surface
func (d *Dispatcher) DetachUI(sink core.UISink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.sinks {
		if s == sink {
			d.sinks = append(d.sinks[:i], d.sinks[i+1:]...)
			return
		}
	}
}

// Last returns the most recent UI message
func (d *Dispatcher) Last() (core.UIMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return core.UIMessage{}, false
	}
	return *d.last, true
}
