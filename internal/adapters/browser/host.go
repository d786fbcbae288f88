// Package browser drives a Chrome tab through the DevTools protocol and
// exposes it as the monitored host.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

const (
	// DefaultURL is the page prefix the host attaches to
	DefaultURL = "https://mail.google.com/"

	aliveTimeout = 2 * time.Second
)

// Selectors locate the parts of the open message
type Selectors struct {
	Body    string
	Subject string
	Sender  string
}

// DefaultSelectors match the Gmail reading pane
var DefaultSelectors = Selectors{
	Body:    "div[role='main'] .a3s",
	Subject: "h2.hP",
	Sender:  ".gD",
}

// Config controls how the browser is reached
type Config struct {
	// DebuggerURL attaches to a running browser. Empty launches one.
	DebuggerURL string
	Bin         string
	Headless    bool
	URL         string
	Selectors   Selectors
}

// Host implements core.Host on top of a rod page
type Host struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
}

// NewHost creates an unconnected host
func NewHost(cfg Config, logger *zap.Logger) *Host {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Selectors.Body == "" {
		cfg.Selectors.Body = DefaultSelectors.Body
	}
	if cfg.Selectors.Subject == "" {
		cfg.Selectors.Subject = DefaultSelectors.Subject
	}
	if cfg.Selectors.Sender == "" {
		cfg.Selectors.Sender = DefaultSelectors.Sender
	}
	return &Host{cfg: cfg, logger: logger}
}

// Start connects to the browser and picks the mail tab
func (h *Host) Start(ctx context.Context) error {
	controlURL, l, err := h.resolve()
	if err != nil {
		return err
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := h.findPage(b)
	if err != nil {
		if l != nil {
			_ = b.Close()
			l.Kill()
		}
		return err
	}

	h.mu.Lock()
	h.browser, h.page, h.launcher = b, page, l
	h.mu.Unlock()

	h.logger.Info("Attached to mail tab",
		zap.String("url_prefix", h.cfg.URL),
		zap.Bool("launched", l != nil))
	return nil
}

func (h *Host) resolve() (string, *launcher.Launcher, error) {
	if h.cfg.DebuggerURL != "" {
		u, err := launcher.ResolveURL(h.cfg.DebuggerURL)
		if err != nil {
			return "", nil, fmt.Errorf("failed to resolve debugger url: %w", err)
		}
		return u, nil, nil
	}

	l := launcher.New().Headless(h.cfg.Headless)
	if h.cfg.Bin != "" {
		l = l.Bin(h.cfg.Bin)
	}
	u, err := l.Launch()
	if err != nil {
		return "", nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return u, l, nil
}

func (h *Host) findPage(b *rod.Browser) (*rod.Page, error) {
	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.HasPrefix(info.URL, h.cfg.URL) {
			return p, nil
		}
	}

	h.logger.Info("No mail tab open, creating one", zap.String("url", h.cfg.URL))
	p, err := b.Page(proto.TargetCreateTarget{URL: h.cfg.URL})
	if err != nil {
		return nil, fmt.Errorf("failed to open mail tab: %w", err)
	}
	return p, nil
}

func (h *Host) currentPage() (*rod.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.page == nil {
		return nil, fmt.Errorf("%w: browser not connected", core.ErrHostInvalidated)
	}
	return h.page, nil
}

// Watch implements core.Host
func (h *Host) Watch(ctx context.Context, onEvent func(core.HostEvent)) (func() error, error) {
	page, err := h.currentPage()
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(ctx)
	p := page.Context(wctx)

	name := "__mailShield_" + strings.ReplaceAll(uuid.NewString()[:13], "-", "")
	unexpose, err := p.Expose(name, func(j gson.JSON) (interface{}, error) {
		if ev, ok := eventFromSignal(j.Str()); ok {
			onEvent(ev)
		}
		return nil, nil
	})
	if err != nil {
		cancel()
		return nil, wrap("expose binding", err)
	}

	if _, err := p.Evaluate(rod.Eval(watchScript, name)); err != nil {
		_ = unexpose()
		cancel()
		return nil, wrap("install observer", err)
	}

	wait := p.EachEvent(func(e *proto.PageFrameNavigated) {
		if e.Frame != nil && e.Frame.ParentID == "" {
			onEvent(core.HostNavigated)
		}
	})
	go wait()

	var once sync.Once
	var stopErr error
	stop := func() error {
		once.Do(func() {
			defer cancel()
			var errs []error
			if _, err := page.Timeout(aliveTimeout).Evaluate(rod.Eval(unwatchScript)); err != nil {
				errs = append(errs, wrap("remove observer", err))
			}
			if err := unexpose(); err != nil {
				errs = append(errs, wrap("remove binding", err))
			}
			stopErr = errors.Join(errs...)
		})
		return stopErr
	}
	return stop, nil
}

// Snapshot implements core.Host
func (h *Host) Snapshot(ctx context.Context) (*core.ObservedContent, error) {
	page, err := h.currentPage()
	if err != nil {
		return nil, err
	}
	sel := h.cfg.Selectors
	res, err := page.Context(ctx).Evaluate(rod.Eval(snapshotScript, sel.Body, sel.Subject, sel.Sender))
	if err != nil {
		return nil, wrap("snapshot", err)
	}
	return decodeSnapshot(res.Value)
}

type snapshot struct {
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Body    string `json:"body"`
}

func decodeSnapshot(v gson.JSON) (*core.ObservedContent, error) {
	if v.Nil() {
		return nil, nil
	}
	var s snapshot
	if err := json.Unmarshal([]byte(v.JSON("", "")), &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &core.ObservedContent{Subject: s.Subject, Sender: s.Sender, Body: s.Body}, nil
}

// Alive implements core.Host
func (h *Host) Alive() error {
	page, err := h.currentPage()
	if err != nil {
		return err
	}
	if _, err := page.Timeout(aliveTimeout).Evaluate(rod.Eval(aliveScript)); err != nil {
		return wrap("probe", err)
	}
	return nil
}

// Close releases the browser. An attached browser is left running.
func (h *Host) Close() error {
	h.mu.Lock()
	b, l := h.browser, h.launcher
	h.browser, h.page, h.launcher = nil, nil, nil
	h.mu.Unlock()

	if l == nil {
		return nil
	}
	err := b.Close()
	l.Kill()
	return err
}

func eventFromSignal(s string) (core.HostEvent, bool) {
	switch s {
	case "mutation":
		return core.HostMutation, true
	case "hidden":
		return core.HostHidden, true
	case "visible":
		return core.HostVisible, true
	case "unloading":
		return core.HostUnloading, true
	}
	return 0, false
}

func wrap(op string, err error) error {
	if isInvalidation(err) {
		return fmt.Errorf("%w: %s: %w", core.ErrHostInvalidated, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isInvalidation(err error) bool {
	for _, target := range []error{
		cdp.ErrSessionNotFound,
		cdp.ErrNotAttachedToActivePage,
		cdp.ErrCtxDestroyed,
		cdp.ErrCtxNotFound,
		io.EOF,
		net.ErrClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var notFound *rod.PageNotFoundError
	return errors.As(err, &notFound)
}
