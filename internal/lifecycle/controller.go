// Package lifecycle drives the watch: it wires host events through the
// debouncer, tracker and orchestrator into the dispatcher, and follows the
// auto-scan preference.
package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/debounce"
	"github.com/mikey/mail-shield/internal/dispatch"
	"github.com/mikey/mail-shield/internal/guard"
	"github.com/mikey/mail-shield/internal/metrics"
	"github.com/mikey/mail-shield/internal/prefs"
	"github.com/mikey/mail-shield/internal/presence"
	"github.com/mikey/mail-shield/internal/scan"
)

const (
	// DefaultSnapshotTimeout bounds a single host snapshot
	DefaultSnapshotTimeout = 5 * time.Second

	eventBuffer = 64
)

// Deps are the collaborators of a Controller
type Deps struct {
	Host            core.Host
	Guard           *guard.Guard
	Prefs           prefs.Store
	Orchestrator    *scan.Orchestrator
	Dispatcher      *dispatch.Dispatcher
	Memory          *core.DispatcherMemory
	Metrics         *metrics.Recorder
	Logger          *zap.Logger
	QuietPeriod     time.Duration
	SnapshotTimeout time.Duration
}

// Controller owns all mutable watch state. Every field below the channels is
// touched only from the Run goroutine.
type Controller struct {
	host         core.Host
	guard        *guard.Guard
	prefs        prefs.Store
	orchestrator *scan.Orchestrator
	dispatcher   *dispatch.Dispatcher
	memory       *core.DispatcherMemory
	tracker      *presence.Tracker
	debouncer    *debounce.Debouncer
	metrics      *metrics.Recorder
	logger       *zap.Logger

	quiet           time.Duration
	snapshotTimeout time.Duration

	events  chan func()
	stopped chan struct{}

	iotEnabled atomic.Bool

	ctx       context.Context
	enabled   bool
	watchID   string
	stopWatch func() error
	lastScan  uint64
}

// New creates a controller. The memory must be the one shared with the dispatcher.
func New(deps Deps) *Controller {
	if deps.QuietPeriod <= 0 {
		deps.QuietPeriod = debounce.DefaultQuietPeriod
	}
	if deps.SnapshotTimeout <= 0 {
		deps.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if deps.Guard == nil {
		deps.Guard = guard.New(deps.Logger, deps.Host.Alive)
	}
	return &Controller{
		host:            deps.Host,
		guard:           deps.Guard,
		prefs:           deps.Prefs,
		orchestrator:    deps.Orchestrator,
		dispatcher:      deps.Dispatcher,
		memory:          deps.Memory,
		tracker:         presence.NewTracker(deps.Memory),
		debouncer:       debounce.New(deps.QuietPeriod),
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		quiet:           deps.QuietPeriod,
		snapshotTimeout: deps.SnapshotTimeout,
		events:          make(chan func(), eventBuffer),
		stopped:         make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled. Pipeline failures never end it.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.stopped)
	c.ctx = ctx

	// Subscribe before the first Load so a change in between is queued
	// behind the initial value instead of being lost.
	unsubscribe := c.prefs.Subscribe(func(p prefs.Preferences) {
		c.post(func() { c.applyPreferences(p) })
	})
	defer unsubscribe()

	current, err := c.prefs.Load(ctx)
	if err != nil {
		c.logger.Warn("Failed to load preferences, using defaults", zap.Error(err))
		current = prefs.Defaults()
	}

	c.orchestrator.SetDeliver(func(id uint64, r core.ScanResult) {
		c.post(func() { c.onResult(id, r) })
	})
	defer c.orchestrator.SetDeliver(nil)

	c.dispatcher.SetAlertGate(c.iotEnabled.Load)
	c.dispatcher.SetLiveness(c.guard.IsLive)

	c.applyPreferences(current)

	for {
		select {
		case <-ctx.Done():
			c.disable()
			c.logger.Info("Lifecycle controller stopped")
			return nil
		case fn := <-c.events:
			fn()
		}
	}
}

// post hands fn to the event loop. It drops fn once Run has returned.
func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.stopped:
	}
}

func (c *Controller) applyPreferences(p prefs.Preferences) {
	c.iotEnabled.Store(p.IoTAlertsEnabled)
	if p.AutoScanEnabled {
		c.enable()
	} else {
		c.disable()
	}
}

func (c *Controller) enable() {
	if c.enabled {
		return
	}
	c.guard.Rebuild()
	c.memory.Reset()
	if err := c.attach(); err != nil {
		c.logger.Warn("Failed to attach watch, auto-scan stays disabled", zap.Error(err))
		return
	}
	c.enabled = true
	c.logger.Info("Auto-scan enabled", zap.String("watch_id", c.watchID))
	c.check()
}

func (c *Controller) disable() {
	if !c.enabled {
		return
	}
	c.enabled = false
	c.debouncer.Cancel()
	c.orchestrator.Cancel()
	c.lastScan = 0
	watchID := c.watchID
	c.detach()

	if c.memory.MessagePreviouslyPresent {
		c.dispatcher.DispatchNoMail()
	}
	c.memory.Reset()
	c.logger.Info("Auto-scan disabled", zap.String("watch_id", watchID))
}

func (c *Controller) attach() error {
	id := uuid.NewString()
	var stop func() error
	err := c.guard.Do("watch", func() error {
		var err error
		stop, err = c.host.Watch(c.ctx, func(ev core.HostEvent) {
			c.post(func() { c.onHostEvent(id, ev) })
		})
		return err
	})
	if err != nil {
		return err
	}
	c.watchID = id
	c.stopWatch = stop
	return nil
}

// detach always runs the stop function so adapter resources are released,
// even when the host is already gone.
func (c *Controller) detach() {
	stop := c.stopWatch
	c.stopWatch = nil
	c.watchID = ""
	if stop == nil {
		return
	}
	if err := stop(); err != nil {
		if errors.Is(err, core.ErrHostInvalidated) {
			c.logger.Debug("Watch detached from invalidated host", zap.Error(err))
			return
		}
		c.logger.Warn("Failed to detach watch", zap.Error(err))
	}
}

func (c *Controller) onHostEvent(watchID string, ev core.HostEvent) {
	if !c.enabled || watchID != c.watchID {
		return
	}
	switch ev {
	case core.HostMutation, core.HostVisible:
		c.debouncer.Schedule(func() { c.post(c.check) }, c.quiet)
	case core.HostHidden, core.HostUnloading:
		c.logger.Debug("Host view went away", zap.String("event", ev.String()))
		c.synthesizeDisappeared()
	case core.HostNavigated:
		c.logger.Debug("Host navigated, rebuilding watch", zap.String("watch_id", watchID))
		c.rebuild()
	}
}

func (c *Controller) synthesizeDisappeared() {
	c.debouncer.Cancel()
	c.handle(c.tracker.Observe(nil), nil)
}

func (c *Controller) rebuild() {
	c.synthesizeDisappeared()
	c.detach()
	c.guard.Rebuild()
	c.memory.Reset()
	if err := c.attach(); err != nil {
		c.enabled = false
		c.logger.Warn("Failed to reattach watch after navigation, auto-scan paused", zap.Error(err))
		return
	}
	c.check()
}

// check takes a snapshot and feeds it to the tracker
func (c *Controller) check() {
	if !c.enabled {
		return
	}
	var content *core.ObservedContent
	err := c.guard.Do("snapshot", func() error {
		ctx, cancel := context.WithTimeout(c.ctx, c.snapshotTimeout)
		defer cancel()
		var err error
		content, err = c.host.Snapshot(ctx)
		return err
	})
	if err != nil {
		if !errors.Is(err, guard.ErrNotLive) {
			c.logger.Warn("Failed to snapshot host", zap.Error(err))
		}
		return
	}
	c.handle(c.tracker.Observe(content), content)
}

func (c *Controller) handle(t core.Transition, content *core.ObservedContent) {
	c.metrics.ObserveTransition(t)

	switch t {
	case core.Appeared, core.Changed:
		req := content.Request()
		if !req.Complete() {
			c.logger.Debug("Message not fully rendered yet, waiting",
				zap.String("transition", t.String()))
			// The scan in flight belongs to a message no longer in view.
			c.orchestrator.Cancel()
			c.lastScan = 0
			return
		}
		c.lastScan = c.orchestrator.Scan(req)
		c.logger.Debug("Scan requested",
			zap.String("transition", t.String()),
			zap.Uint64("scan_id", c.lastScan))
	case core.Disappeared:
		c.orchestrator.Cancel()
		c.lastScan = 0
		c.dispatcher.DispatchNoMail()
	}
}

func (c *Controller) onResult(id uint64, r core.ScanResult) {
	if !c.enabled || id == 0 || id != c.lastScan {
		c.logger.Debug("Dropping stale scan result", zap.Uint64("scan_id", id))
		return
	}
	c.lastScan = 0
	c.dispatcher.DispatchResult(r)
}
