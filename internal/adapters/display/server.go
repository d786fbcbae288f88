package display

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/adapters/scoring"
	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/dispatch"
	"github.com/mikey/mail-shield/internal/lifecycle"
	"github.com/mikey/mail-shield/internal/prefs"
)

// Attacher is where the server registers itself as a display surface
type Attacher interface {
	AttachUI(sink core.UISink)
	DetachUI(sink core.UISink)
}

// LinkChecker scores a single URL
type LinkChecker interface {
	CheckLink(ctx context.Context, rawURL string) (*core.LinkVerdict, error)
}

// EmailScanner classifies the message open in the host on demand
type EmailScanner interface {
	ScanNow(ctx context.Context) (core.ScanResult, error)
}

// Options wires the optional parts of the server
type Options struct {
	Attacher Attacher
	Gatherer prometheus.Gatherer
	Prefs    prefs.Store
	Live     func() bool
	Links    LinkChecker
	Scanner  EmailScanner
}

// Server exposes the latest result over HTTP
type Server struct {
	app      *fiber.App
	addr     string
	attacher Attacher
	prefs    prefs.Store
	live     func() bool
	links    LinkChecker
	scanner  EmailScanner
	logger   *zap.Logger

	mu   sync.RWMutex
	last *core.UIMessage
}

// NewServer builds the HTTP surface
func NewServer(addr string, opts Options, logger *zap.Logger) *Server {
	s := &Server{
		addr:     addr,
		attacher: opts.Attacher,
		prefs:    opts.Prefs,
		live:     opts.Live,
		links:    opts.Links,
		scanner:  opts.Scanner,
		logger:   logger,
	}

	app := fiber.New(fiber.Config{
		AppName:     "mail-shield",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	app.Use(recover.New())

	app.Get("/api/result", s.handleResult)
	app.Get("/healthz", s.handleHealth)
	if opts.Prefs != nil {
		app.Get("/api/preferences", s.handleGetPreferences)
		app.Put("/api/preferences", s.handlePutPreferences)
	}
	if opts.Links != nil {
		app.Post("/api/scan-link", s.handleScanLink)
	}
	if opts.Scanner != nil {
		app.Post("/api/scan-email", s.handleScanEmail)
	}
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Hooks().OnListen(func(fiber.ListenData) error {
		if s.attacher != nil {
			s.attacher.AttachUI(s)
		}
		s.logger.Info("Display server listening", zap.String("address", s.addr))
		return nil
	})

	s.app = app
	return s
}

// Display implements core.UISink
func (s *Server) Display(msg core.UIMessage) {
	s.mu.Lock()
	s.last = &msg
	s.mu.Unlock()
}

// Start blocks serving until Shutdown
func (s *Server) Start() error {
	return s.app.Listen(s.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown detaches from the dispatcher and stops the listener
func (s *Server) Shutdown() error {
	if s.attacher != nil {
		s.attacher.DetachUI(s)
	}
	return s.app.Shutdown()
}

func (s *Server) handleResult(c fiber.Ctx) error {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(last)
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	if s.live != nil && !s.live() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "host_invalidated"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleGetPreferences(c fiber.Ctx) error {
	p, err := s.prefs.Load(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(p)
}

// preferencesPatch leaves absent keys untouched
type preferencesPatch struct {
	AutoScanEnabled  *bool `json:"autoScanEnabled"`
	IoTAlertsEnabled *bool `json:"iotAlertsEnabled"`
}

func (s *Server) handlePutPreferences(c fiber.Ctx) error {
	var patch preferencesPatch
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "reason": err.Error()})
	}

	p, err := s.prefs.Load(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if patch.AutoScanEnabled != nil {
		p.AutoScanEnabled = *patch.AutoScanEnabled
	}
	if patch.IoTAlertsEnabled != nil {
		p.IoTAlertsEnabled = *patch.IoTAlertsEnabled
	}
	if err := s.prefs.Save(c.Context(), p); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	s.logger.Info("Preferences updated over HTTP",
		zap.Bool("auto_scan", p.AutoScanEnabled),
		zap.Bool("iot_alerts", p.IoTAlertsEnabled))
	return c.JSON(p)
}

type scanLinkRequest struct {
	URL string `json:"url"`
}

type scanLinkResponse struct {
	*core.LinkVerdict
	Result string `json:"result"`
}

func (s *Server) handleScanLink(c fiber.Ctx) error {
	var req scanLinkRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "reason": err.Error()})
	}

	verdict, err := s.links.CheckLink(c.Context(), req.URL)
	switch {
	case errors.Is(err, scoring.ErrEmptyLink):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Please enter a URL."})
	case errors.Is(err, scoring.ErrInvalidLink):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Please enter a valid URL."})
	case err != nil:
		s.logger.Warn("Link scan failed", zap.String("url", req.URL), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Scan failed. Please try again."})
	}

	return c.JSON(scanLinkResponse{
		LinkVerdict: verdict,
		Result:      "Status: " + strings.ToUpper(verdict.Status),
	})
}

type scanEmailResponse struct {
	Result  string   `json:"result"`
	Outcome string   `json:"outcome"`
	Label   string   `json:"label,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Risk    *float64 `json:"risk,omitempty"`
}

func (s *Server) handleScanEmail(c fiber.Ctx) error {
	result, err := s.scanner.ScanNow(c.Context())
	switch {
	case errors.Is(err, lifecycle.ErrNoMessage):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Could not extract email content."})
	case err != nil:
		s.logger.Warn("Manual email scan failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Could not extract email content."})
	}

	return c.JSON(scanEmailResponse{
		Result:  dispatch.FormatResult(result),
		Outcome: result.Outcome.String(),
		Label:   result.Label,
		Reason:  result.Reason,
		Risk:    result.Risk,
	})
}
