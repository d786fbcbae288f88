package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

func entry(key string, expires time.Time) *core.CacheEntry {
	risk := 0.42
	return &core.CacheEntry{
		Key:       key,
		Label:     "phishing",
		Reason:    "spoofed sender",
		Risk:      &risk,
		LastSeen:  expires.Add(-time.Hour),
		ExpiresAt: expires,
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = c.Set(ctx, entry("live", now.Add(time.Minute)))
	_ = c.Set(ctx, entry("stale", now.Add(-time.Minute)))

	got, err := c.Get(ctx, "live")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Label != "phishing" || got.Risk == nil || *got.Risk != 0.42 {
		t.Errorf("unexpected entry %+v", got)
	}
	if _, err := c.Get(ctx, "stale"); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}

	if err := c.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry after cleanup, got %d", c.Len())
	}

	_ = c.Delete(ctx, "live")
	if _, err := c.Get(ctx, "live"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted entry to be gone, got %v", err)
	}
}

func TestSQLiteCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Stop()

	now := time.Unix(1_714_564_800, 0)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, entry("live", now.Add(time.Minute))); err != nil {
		t.Fatalf("set: %v", err)
	}
	noRisk := entry("norisk", now.Add(time.Minute))
	noRisk.Risk = nil
	if err := c.Set(ctx, noRisk); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Set(ctx, entry("stale", now.Add(-time.Minute))); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := c.Get(ctx, "live")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reason != "spoofed sender" || got.Risk == nil || *got.Risk != 0.42 || !got.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Errorf("unexpected entry %+v", got)
	}
	if got, err := c.Get(ctx, "norisk"); err != nil || got.Risk != nil {
		t.Errorf("expected entry without risk, got %+v err=%v", got, err)
	}
	if _, err := c.Get(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired rows must not be returned, got %v", err)
	}

	updated := entry("live", now.Add(time.Hour))
	updated.Label = "safe"
	if err := c.Set(ctx, updated); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got, _ := c.Get(ctx, "live"); got == nil || got.Label != "safe" {
		t.Errorf("upsert did not replace entry: %+v", got)
	}

	if err := c.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if err := c.Delete(ctx, "live"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "live"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
