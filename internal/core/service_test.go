package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubClassifier struct {
	calls   int
	verdict *Verdict
	err     error
}

func (s *stubClassifier) Classify(ctx context.Context, req *ScanRequest) (*Verdict, error) {
	s.calls++
	return s.verdict, s.err
}

type mapCache struct {
	entries map[string]*CacheEntry
}

func (m *mapCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	e, ok := m.entries[key]
	if !ok || time.Now().After(e.ExpiresAt) {
		return nil, errors.New("miss")
	}
	return e, nil
}

func (m *mapCache) Set(ctx context.Context, entry *CacheEntry) error {
	m.entries[entry.Key] = entry
	return nil
}

func (m *mapCache) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *mapCache) Cleanup(ctx context.Context) error { return nil }

type domainTrust string

func (d domainTrust) IsWhitelisted(sender string) bool {
	return strings.HasSuffix(sender, "@"+string(d))
}

func TestScanService_TrustedSenderSkipsClassifier(t *testing.T) {
	cl := &stubClassifier{verdict: &Verdict{Label: "phishing"}}
	svc := NewScanService(cl, nil, domainTrust("example.org"), zap.NewNop(), false, 0)

	v, err := svc.Classify(context.Background(), &ScanRequest{Subject: "hi", Sender: "bob@example.org", Body: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Label != "safe" || v.Model != "whitelist" {
		t.Errorf("expected trusted safe verdict, got %+v", v)
	}
	if cl.calls != 0 {
		t.Errorf("classifier should not be called, got %d calls", cl.calls)
	}
}

func TestScanService_CachesVerdicts(t *testing.T) {
	cl := &stubClassifier{verdict: &Verdict{Label: "scam", Reason: "wire transfer"}}
	cache := &mapCache{entries: map[string]*CacheEntry{}}
	svc := NewScanService(cl, cache, nil, zap.NewNop(), true, time.Hour)
	req := &ScanRequest{Subject: "urgent", Sender: "x@y.z", Body: "send money"}

	for i := 0; i < 3; i++ {
		v, err := svc.Classify(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Label != "scam" {
			t.Fatalf("expected scam, got %q", v.Label)
		}
	}
	if cl.calls != 1 {
		t.Errorf("expected 1 classifier call, got %d", cl.calls)
	}
	if _, ok := cache.entries[CacheKey(req)]; !ok {
		t.Error("expected verdict to be cached under request key")
	}
}

func TestScanService_PropagatesClassifierError(t *testing.T) {
	cl := &stubClassifier{err: ErrBackendOffline}
	svc := NewScanService(cl, &mapCache{entries: map[string]*CacheEntry{}}, nil, zap.NewNop(), true, time.Hour)

	_, err := svc.Classify(context.Background(), &ScanRequest{Subject: "a", Sender: "b", Body: "c"})
	if !errors.Is(err, ErrBackendOffline) {
		t.Errorf("expected ErrBackendOffline, got %v", err)
	}
}

func TestScanRequest_Complete(t *testing.T) {
	tests := []struct {
		name string
		req  ScanRequest
		want bool
	}{
		{"all fields", ScanRequest{"s", "f", "b"}, true},
		{"no subject", ScanRequest{"", "f", "b"}, false},
		{"blank sender", ScanRequest{"s", "  ", "b"}, false},
		{"no body", ScanRequest{"s", "f", ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusFromLabel(t *testing.T) {
	tests := map[string]Status{
		"safe":       StatusSafe,
		"Legitimate": StatusSafe,
		"spam":       StatusSuspicious,
		"phishing":   StatusMalicious,
		"FRAUDULENT": StatusMalicious,
		"whatever":   StatusUnknown,
		"":           StatusUnknown,
	}
	for label, want := range tests {
		if got := StatusFromLabel(label); got != want {
			t.Errorf("StatusFromLabel(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestDispatcherMemory_Reset(t *testing.T) {
	m := &DispatcherMemory{LastFingerprint: "fp", LastAlertLabel: NoMail, MessagePreviouslyPresent: true}
	m.Reset()
	if *m != (DispatcherMemory{}) {
		t.Errorf("expected zero memory after reset, got %+v", *m)
	}
}
