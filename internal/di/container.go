package di

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/adapters/alert"
	"github.com/mikey/mail-shield/internal/adapters/browser"
	"github.com/mikey/mail-shield/internal/adapters/display"
	"github.com/mikey/mail-shield/internal/adapters/scoring"
	"github.com/mikey/mail-shield/internal/config"
	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/dispatch"
	"github.com/mikey/mail-shield/internal/factory"
	"github.com/mikey/mail-shield/internal/lifecycle"
	"github.com/mikey/mail-shield/internal/logging"
	"github.com/mikey/mail-shield/internal/metrics"
	"github.com/mikey/mail-shield/internal/prefs"
	"github.com/mikey/mail-shield/internal/scan"
	"github.com/mikey/mail-shield/internal/utils"
	"github.com/mikey/mail-shield/internal/whitelist"
)

// Backend is the remote classifier before the trust and cache layers
type Backend struct {
	core.Classifier
}

// Close releases the backend client when it holds one
func (b Backend) Close() error {
	if closer, ok := b.Classifier.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// AlertSinks is the configured IoT fan-out and its shutdown hook
type AlertSinks struct {
	*alert.Multi
	Stop func()
}

// Publisher returns the fan-out, or nil when no sink is configured
func (s AlertSinks) Publisher() core.AlertPublisher {
	if s.Multi == nil || s.Multi.Len() == 0 {
		return nil
	}
	return s.Multi
}

// BuildContainer creates and configures the daemon's dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration and logger
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideScanning(container); err != nil {
		return nil, err
	}

	// Register alert sinks
	if err := container.Provide(factory.NewAlertFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.AlertFactory) (AlertSinks, error) {
		m, stop, err := f.CreatePublisher(context.Background())
		if err != nil {
			return AlertSinks{}, err
		}
		return AlertSinks{Multi: m, Stop: stop}, nil
	}); err != nil {
		return nil, err
	}

	// Register dispatcher
	if err := container.Provide(func() *core.DispatcherMemory {
		return &core.DispatcherMemory{}
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		cfg *config.Config,
		mem *core.DispatcherMemory,
		sinks AlertSinks,
		recorder *metrics.Recorder,
		logger *zap.Logger,
	) *dispatch.Dispatcher {
		alertsCfg := cfg.GetAlerts()
		return dispatch.New(mem, sinks.Publisher(), dispatch.Options{
			Topic:          alertsCfg.Topic,
			PublishTimeout: alertsCfg.Timeout,
		}, recorder, logger)
	}); err != nil {
		return nil, err
	}

	// Register browser host
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *browser.Host {
		b := cfg.GetBrowser()
		w := cfg.GetWatch()
		return browser.NewHost(browser.Config{
			DebuggerURL: b.DebuggerURL,
			Bin:         b.Bin,
			Headless:    b.Headless,
			URL:         b.URL,
			Selectors: browser.Selectors{
				Body:    w.BodySelector,
				Subject: w.SubjectSelector,
				Sender:  w.SenderSelector,
			},
		}, logger)
	}); err != nil {
		return nil, err
	}

	// Register preferences
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*prefs.FileStore, error) {
		return prefs.NewFileStore(cfg.GetPrefsPath(), logger)
	}); err != nil {
		return nil, err
	}

	// Register lifecycle controller
	if err := container.Provide(func(
		cfg *config.Config,
		host *browser.Host,
		store *prefs.FileStore,
		orchestrator *scan.Orchestrator,
		dispatcher *dispatch.Dispatcher,
		mem *core.DispatcherMemory,
		recorder *metrics.Recorder,
		logger *zap.Logger,
	) *lifecycle.Controller {
		w := cfg.GetWatch()
		return lifecycle.New(lifecycle.Deps{
			Host:            host,
			Prefs:           store,
			Orchestrator:    orchestrator,
			Dispatcher:      dispatcher,
			Memory:          mem,
			Metrics:         recorder,
			Logger:          logger,
			QuietPeriod:     w.QuietPeriod,
			SnapshotTimeout: w.SnapshotTimeout,
		})
	}); err != nil {
		return nil, err
	}

	// Register link checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *scoring.LinkChecker {
		c := cfg.GetClassifier()
		return scoring.NewLinkChecker(c.LinkEndpoint, c.Timeout, logger)
	}); err != nil {
		return nil, err
	}

	// Register display surfaces
	if err := container.Provide(func(
		cfg *config.Config,
		dispatcher *dispatch.Dispatcher,
		registry *prometheus.Registry,
		store *prefs.FileStore,
		host *browser.Host,
		links *scoring.LinkChecker,
		controller *lifecycle.Controller,
		logger *zap.Logger,
	) *display.Server {
		return display.NewServer(cfg.GetDisplay().Address, display.Options{
			Attacher: dispatcher,
			Gatherer: registry,
			Prefs:    store,
			Live:     func() bool { return host.Alive() == nil },
			Links:    links,
			Scanner:  controller,
		}, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideScanning registers everything between a scan request and a result
func provideScanning(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register remote classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (Backend, error) {
		c, err := f.CreateClassifier()
		if err != nil {
			return Backend{}, err
		}
		return Backend{Classifier: c}, nil
	}); err != nil {
		return err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return err
	}

	// Register trusted sender checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.TrustChecker {
		return whitelist.NewChecker(cfg.GetTrustedDomains(), logger)
	}); err != nil {
		return err
	}

	// Register scan service
	if err := container.Provide(func(
		backend Backend,
		cache core.CacheRepository,
		trust core.TrustChecker,
		f *factory.CacheFactory,
		logger *zap.Logger,
	) *core.ScanService {
		return core.NewScanService(backend.Classifier, cache, trust, logger, f.IsCacheEnabled(), f.GetCacheTTL())
	}); err != nil {
		return err
	}

	// Register metrics
	if err := container.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg
	}); err != nil {
		return err
	}
	if err := container.Provide(func(reg *prometheus.Registry) *metrics.Recorder {
		return metrics.New(reg)
	}); err != nil {
		return err
	}

	// Register orchestrator
	if err := container.Provide(func(
		cfg *config.Config,
		svc *core.ScanService,
		text *utils.TextProcessor,
		recorder *metrics.Recorder,
		logger *zap.Logger,
	) *scan.Orchestrator {
		c := cfg.GetClassifier()
		return scan.New(svc, scan.Options{
			Timeout:      c.Timeout,
			MaxBodyChars: c.MaxBodyChars,
		}, text, recorder, logger)
	}); err != nil {
		return err
	}

	return nil
}
