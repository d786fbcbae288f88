package dispatch

import (
	"testing"

	"github.com/mikey/mail-shield/internal/core"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in     string
		want   core.AlertLabel
		wantOK bool
	}{
		{"Status: SAFE (clean)", "safe", true},
		{"status:phishing", "phishing", true},
		{"  STATUS:   Scam (wire transfer)", "scam", true},
		{"Status: suspicious_url", "suspicious_url", true},
		{"No mail detected", "", false},
		{"Scan failed: backend offline", "", false},
		{"🛡️ Status: SAFE (clean)", "safe", true},
		{"Result - status: Fraudulent", "fraudulent", true},
		{"Status:", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseLabel(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLabel(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name string
		in   core.ScanResult
		want string
	}{
		{"completed with reason", core.ScanResult{Outcome: core.OutcomeCompleted, Label: "safe", Reason: "clean"}, "Status: SAFE (clean)"},
		{"completed without reason", core.ScanResult{Outcome: core.OutcomeCompleted, Label: "fraudulent"}, "Status: FRAUDULENT"},
		{"falls back to status", core.ScanResult{Outcome: core.OutcomeCompleted, Status: core.StatusSuspicious}, "Status: SUSPICIOUS"},
		{"failed", core.ScanResult{Outcome: core.OutcomeFailed, Reason: "backend offline"}, "Scan failed: backend offline"},
		{"timed out", core.ScanResult{Outcome: core.OutcomeTimedOut, Reason: "scan timed out after 15s"}, "Scan timed out after 15s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatResult(tt.in); got != tt.want {
				t.Errorf("FormatResult = %q, want %q", got, tt.want)
			}
		})
	}
}
