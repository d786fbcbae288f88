package factory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/adapters/cache"
	"github.com/mikey/mail-shield/internal/adapters/scoring"
	"github.com/mikey/mail-shield/internal/config"
)

func newConfig() *config.Config {
	return config.NewFromViper(config.NewEmptyViper())
}

func TestCreateClassifier(t *testing.T) {
	cfg := newConfig()
	c, err := NewClassifierFactory(cfg, zap.NewNop()).CreateClassifier()
	if err != nil {
		t.Fatalf("scoring: %v", err)
	}
	if _, ok := c.(*scoring.Classifier); !ok {
		t.Errorf("default provider built %T", c)
	}

	cfg.Set("classifier.provider", "openai")
	if _, err := NewClassifierFactory(cfg, zap.NewNop()).CreateClassifier(); err == nil {
		t.Error("openai without an API key should fail")
	}

	cfg.Set("classifier.provider", "carrier-pigeon")
	_, err = NewClassifierFactory(cfg, zap.NewNop()).CreateClassifier()
	if err == nil || !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestCreateCacheRepository(t *testing.T) {
	cfg := newConfig()
	cfg.Set("cache.cleanup_frequency", "0s")
	f := NewCacheFactory(cfg, zap.NewNop())

	repo, err := f.CreateCacheRepository()
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	mem, ok := repo.(*cache.MemoryCache)
	if !ok {
		t.Fatalf("memory cache type %T", repo)
	}
	mem.Stop()

	cfg.Set("cache.type", "sqlite")
	cfg.Set("cache.sqlite.path", filepath.Join(t.TempDir(), "nested", "cache.db"))
	repo, err = f.CreateCacheRepository()
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	repo.(*cache.SQLiteCache).Stop()

	cfg.Set("cache.type", "redis")
	if _, err := f.CreateCacheRepository(); err == nil {
		t.Error("expected error for unsupported cache type")
	}

	if !f.IsCacheEnabled() || f.GetCacheTTL() <= 0 {
		t.Error("unexpected cache defaults")
	}
}

func TestCreatePublisher(t *testing.T) {
	cfg := newConfig()
	f := NewAlertFactory(cfg, zap.NewNop())

	m, stop, err := f.CreatePublisher(context.Background())
	if err != nil {
		t.Fatalf("default sinks: %v", err)
	}
	defer stop()
	if m.Len() != 1 {
		t.Errorf("default fan-out has %d sinks, want 1", m.Len())
	}

	cfg.Set("alerts.sinks", []string{"relay", "smtp"})
	cfg.Set("smtp.to", []string{"ops@example.com"})
	m, stop2, err := f.CreatePublisher(context.Background())
	if err != nil {
		t.Fatalf("relay+smtp: %v", err)
	}
	defer stop2()
	if m.Len() != 2 {
		t.Errorf("fan-out has %d sinks, want 2", m.Len())
	}

	cfg.Set("alerts.sinks", []string{"telegram"})
	if _, _, err := f.CreatePublisher(context.Background()); err == nil {
		t.Error("telegram without a token should fail")
	}

	cfg.Set("alerts.sinks", []string{"pager"})
	if _, _, err := f.CreatePublisher(context.Background()); err == nil {
		t.Error("expected error for unknown sink")
	}
}
