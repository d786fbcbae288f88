package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/adapters/display"
	"github.com/mikey/mail-shield/internal/config"
	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/di"
	"github.com/mikey/mail-shield/internal/dispatch"
	"github.com/mikey/mail-shield/internal/mailfile"
	"github.com/mikey/mail-shield/internal/scan"
)

// Exit codes
const (
	exitClean      = 0
	exitMalicious  = 1
	exitError      = 2
	exitSuspicious = 3
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(exitError)
	}

	code := exitError
	if err := container.Invoke(func(
		flags *di.CLIFlags,
		cfg *config.Config,
		logger *zap.Logger,
		orchestrator *scan.Orchestrator,
		dispatcher *dispatch.Dispatcher,
		console *display.Console,
		sinks di.AlertSinks,
		backend di.Backend,
		cacheRepo core.CacheRepository,
	) {
		code = run(flags, cfg, logger, orchestrator, dispatcher, console, sinks, backend)
		if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
	}
	os.Exit(code)
}

func run(
	flags *di.CLIFlags,
	cfg *config.Config,
	logger *zap.Logger,
	orchestrator *scan.Orchestrator,
	dispatcher *dispatch.Dispatcher,
	console *display.Console,
	sinks di.AlertSinks,
	backend di.Backend,
) int {
	defer logger.Sync()
	defer sinks.Stop()
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}()

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Error("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
			return exitError
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	req, err := mailfile.Parse(bufio.NewReader(emailReader))
	if err != nil {
		logger.Error("Failed to parse email", zap.Error(err))
		return exitError
	}
	if !req.Complete() {
		logger.Error("Message is missing a subject, sender or body",
			zap.Bool("has_subject", req.Subject != ""),
			zap.Bool("has_sender", req.Sender != ""),
			zap.Bool("has_body", req.Body != ""))
		return exitError
	}

	logger.Info("Scanning message",
		zap.String("provider", cfg.GetClassifier().Provider),
		zap.String("sender", req.Sender),
		zap.String("subject", req.Subject),
		zap.Int("body_chars", len([]rune(req.Body))))

	dispatcher.AttachUI(console)
	result := orchestrator.Execute(context.Background(), *req)
	dispatcher.DispatchResult(result)
	dispatcher.Wait()

	logger.Info("Scan finished",
		zap.Stringer("outcome", result.Outcome),
		zap.String("status", string(result.Status)),
		zap.String("model", result.Model),
		zap.Duration("elapsed", result.Timing))

	return exitCode(result)
}

// exitCode maps a scan result onto the process exit status. A label that maps
// to no known status counts as clean.
func exitCode(result core.ScanResult) int {
	if result.Outcome != core.OutcomeCompleted {
		return exitError
	}
	switch result.Status {
	case core.StatusMalicious:
		return exitMalicious
	case core.StatusSuspicious:
		return exitSuspicious
	default:
		return exitClean
	}
}
