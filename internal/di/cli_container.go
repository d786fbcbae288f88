package di

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/adapters/display"
	"github.com/mikey/mail-shield/internal/config"
	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/dispatch"
	"github.com/mikey/mail-shield/internal/factory"
	"github.com/mikey/mail-shield/internal/logging"
	"github.com/mikey/mail-shield/internal/metrics"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Classifier flags
	Provider     string
	Endpoint     string
	Timeout      time.Duration
	MaxBodyChars int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string
	OpenAIBaseURL   string

	// Trust and alert flags
	TrustedDomains string
	Alert          bool

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	// Classifier flags
	fs.StringVar(&flags.Provider, "provider", "", "Classifier provider (scoring, openai, gemini, bedrock)")
	fs.StringVar(&flags.Endpoint, "endpoint", "", "Scoring service endpoint")
	fs.DurationVar(&flags.Timeout, "timeout", 0, "Classification timeout")
	fs.IntVar(&flags.MaxBodyChars, "max-body-chars", 0, "Maximum body characters sent to the classifier")

	// Bedrock flags
	fs.StringVar(&flags.BedrockRegion, "bedrock-region", "", "AWS region for Bedrock")
	fs.StringVar(&flags.BedrockModelID, "bedrock-model", "", "Bedrock model ID")

	// Gemini flags
	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	fs.StringVar(&flags.GeminiModelName, "gemini-model", "", "Gemini model name")

	// OpenAI flags
	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	fs.StringVar(&flags.OpenAIModelName, "openai-model", "", "OpenAI model name")
	fs.StringVar(&flags.OpenAIBaseURL, "openai-base-url", "", "OpenAI compatible base URL")

	// Trust and alert flags
	fs.StringVar(&flags.TrustedDomains, "trust", "", "Comma-separated list of trusted sender domains")
	fs.BoolVar(&flags.Alert, "alert", false, "Publish the verdict to the configured alert sinks")

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (flags override its values)")

	_ = fs.Parse(args)
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg := config.NewFromViper(config.NewEmptyViper())
		if flags.ConfigFile != "" {
			var err error
			if cfg, err = config.NewFromFile(flags.ConfigFile); err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", flags.ConfigFile))
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideScanning(container); err != nil {
		return nil, err
	}

	// Register alert sinks, only when asked for
	if err := container.Provide(factory.NewAlertFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(flags *CLIFlags, f *factory.AlertFactory) (AlertSinks, error) {
		if !flags.Alert {
			return AlertSinks{Stop: func() {}}, nil
		}
		m, stop, err := f.CreatePublisher(context.Background())
		if err != nil {
			return AlertSinks{}, err
		}
		return AlertSinks{Multi: m, Stop: stop}, nil
	}); err != nil {
		return nil, err
	}

	// Register dispatcher and console
	if err := container.Provide(func(
		cfg *config.Config,
		sinks AlertSinks,
		recorder *metrics.Recorder,
		logger *zap.Logger,
	) *dispatch.Dispatcher {
		alertsCfg := cfg.GetAlerts()
		return dispatch.New(&core.DispatcherMemory{}, sinks.Publisher(), dispatch.Options{
			Topic:          alertsCfg.Topic,
			PublishTimeout: alertsCfg.Timeout,
		}, recorder, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func() *display.Console {
		return display.NewConsole(os.Stdout)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags overrides configuration with the flags that were given
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	setString := func(key, value string) {
		if value != "" {
			cfg.Set(key, value)
		}
	}

	setString("classifier.provider", flags.Provider)
	setString("classifier.endpoint", flags.Endpoint)
	if flags.Timeout > 0 {
		cfg.Set("classifier.timeout", flags.Timeout.String())
	}
	if flags.MaxBodyChars > 0 {
		cfg.Set("classifier.max_body_chars", flags.MaxBodyChars)
	}

	setString("bedrock.region", flags.BedrockRegion)
	setString("bedrock.model_id", flags.BedrockModelID)
	setString("gemini.api_key", flags.GeminiAPIKey)
	setString("gemini.model_name", flags.GeminiModelName)
	setString("openai.api_key", flags.OpenAIAPIKey)
	setString("openai.model_name", flags.OpenAIModelName)
	setString("openai.base_url", flags.OpenAIBaseURL)

	if flags.TrustedDomains != "" {
		domains := strings.Split(flags.TrustedDomains, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		cfg.Set("trust.domains", domains)
	}

	// The one-shot CLI never persists verdicts
	if flags.ConfigFile == "" {
		cfg.Set("cache.type", "memory")
		cfg.Set("cache.cleanup_frequency", "0s")
	}
}
