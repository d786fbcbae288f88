package whitelist

import (
	"testing"

	"go.uber.org/zap"
)

func TestIsWhitelisted(t *testing.T) {
	c := NewChecker([]string{" Example.com ", "@corp.example", ""}, zap.NewNop())

	tests := []struct {
		sender string
		want   bool
	}{
		{"alice@example.com", true},
		{"ALICE@EXAMPLE.COM", true},
		{"Alice Smith <alice@example.com>", true},
		{"ops@corp.example", true},
		{"alice@sub.example.com", false},
		{"alice@example.com.evil", false},
		{"phisher@evil.example", false},
		{"not-an-address", false},
		{"trailing@", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.IsWhitelisted(tt.sender); got != tt.want {
			t.Errorf("IsWhitelisted(%q) = %v, want %v", tt.sender, got, tt.want)
		}
	}
}

func TestEmptyChecker(t *testing.T) {
	c := NewChecker(nil, nil)
	if c.IsWhitelisted("alice@example.com") {
		t.Error("empty checker trusted a sender")
	}
}
