package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/adapters/browser"
	"github.com/mikey/mail-shield/internal/adapters/display"
	"github.com/mikey/mail-shield/internal/config"
	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/di"
	"github.com/mikey/mail-shield/internal/dispatch"
	"github.com/mikey/mail-shield/internal/lifecycle"
	"github.com/mikey/mail-shield/internal/prefs"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	host *browser.Host,
	store *prefs.FileStore,
	controller *lifecycle.Controller,
	dispatcher *dispatch.Dispatcher,
	server *display.Server,
	sinks di.AlertSinks,
	backend di.Backend,
	cacheRepo core.CacheRepository,
) error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := host.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser host: %w", err)
	}
	defer func() {
		if err := host.Close(); err != nil {
			logger.Error("Failed to close browser", zap.Error(err))
		}
	}()

	if err := store.Start(); err != nil {
		logger.Warn("Preference file watching disabled", zap.String("path", store.Path()), zap.Error(err))
	}

	displayCfg := cfg.GetDisplay()
	if displayCfg.ConsoleEnabled {
		dispatcher.AttachUI(display.NewConsole(os.Stdout))
	}
	if displayCfg.Enabled {
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Display server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("mail-shield started", zap.String("prefs", store.Path()))
	if err := controller.Run(ctx); err != nil {
		logger.Error("Controller stopped", zap.Error(err))
	}
	logger.Info("Shutting down...")

	if displayCfg.Enabled {
		if err := server.Shutdown(); err != nil {
			logger.Error("Failed to stop display server", zap.Error(err))
		}
	}
	if err := store.Stop(); err != nil {
		logger.Error("Failed to stop preference watcher", zap.Error(err))
	}

	dispatcher.Wait()
	sinks.Stop()

	if err := backend.Close(); err != nil {
		logger.Error("Failed to close classifier", zap.Error(err))
	}

	// Stop the cache if needed
	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
