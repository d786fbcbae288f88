package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// TrustChecker decides whether a sender is trusted without classification
type TrustChecker interface {
	IsWhitelisted(sender string) bool
}

// ScanService is the core classification service. It wraps a remote
// classifier with the trusted-sender shortcut and the verdict cache.
type ScanService struct {
	classifier   Classifier
	cache        CacheRepository
	trust        TrustChecker
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewScanService creates a new scan service
func NewScanService(
	classifier Classifier,
	cache CacheRepository,
	trust TrustChecker,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
) *ScanService {
	return &ScanService{
		classifier:   classifier,
		cache:        cache,
		trust:        trust,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
	}
}

// CacheKey returns the digest a request is cached under
func CacheKey(req *ScanRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Subject))
	h.Write([]byte{0})
	h.Write([]byte(req.Sender))
	h.Write([]byte{0})
	h.Write([]byte(req.Body))
	return hex.EncodeToString(h.Sum(nil))
}

// Classify implements Classifier
func (s *ScanService) Classify(ctx context.Context, req *ScanRequest) (*Verdict, error) {
	if s.trust != nil && s.trust.IsWhitelisted(req.Sender) {
		s.logger.Info("Skipping classification for trusted sender",
			zap.String("sender", req.Sender),
			zap.String("action", "trust_bypass"))
		return &Verdict{
			Label:  string(StatusSafe),
			Reason: "trusted sender domain",
			Model:  "whitelist",
		}, nil
	}

	key := ""
	if s.cacheEnabled {
		key = CacheKey(req)
		if entry, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("Cache hit for message", zap.String("key", key[:12]))
			return &Verdict{
				Label:  entry.Label,
				Reason: entry.Reason,
				Risk:   entry.Risk,
				Model:  "cache",
			}, nil
		}
	}

	verdict, err := s.classifier.Classify(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled {
		now := time.Now()
		entry := &CacheEntry{
			Key:       key,
			Label:     verdict.Label,
			Reason:    verdict.Reason,
			Risk:      verdict.Risk,
			LastSeen:  now,
			ExpiresAt: now.Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return verdict, nil
}
