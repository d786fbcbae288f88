package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/adapters/bedrock"
	"github.com/mikey/mail-shield/internal/adapters/gemini"
	"github.com/mikey/mail-shield/internal/adapters/openai"
	"github.com/mikey/mail-shield/internal/adapters/scoring"
	"github.com/mikey/mail-shield/internal/config"
	"github.com/mikey/mail-shield/internal/core"
)

// ClassifierFactory creates the remote classifier named by classifier.provider
type ClassifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClassifier creates a new classifier based on the configuration
func (f *ClassifierFactory) CreateClassifier() (core.Classifier, error) {
	classifierCfg := f.cfg.GetClassifier()

	switch classifierCfg.Provider {
	case "scoring", "":
		return scoring.NewClassifier(classifierCfg.Endpoint, classifierCfg.Timeout, f.logger), nil
	case "openai":
		return openai.NewFactory(f.cfg, f.logger).CreateClassifier()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger).CreateClassifier()
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger).CreateClassifier()
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", classifierCfg.Provider)
	}
}
