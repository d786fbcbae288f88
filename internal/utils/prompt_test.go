package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/mikey/mail-shield/internal/core"
)

func TestParseModelReply(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantLabel string
		wantErr   bool
	}{
		{"plain json", `{"status":"Phishing","reason":"spoofed bank","risk":0.9}`, "phishing", false},
		{"fenced", "```json\n{\"status\": \"safe\", \"reason\": \"newsletter\"}\n```", "safe", false},
		{"no status", `{"reason":"unsure"}`, "", true},
		{"prose only", "I think this one is fine.", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseModelReply(tt.reply, "test-model")
			if tt.wantErr {
				if !errors.Is(err, core.ErrMalformedResponse) {
					t.Fatalf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Label != tt.wantLabel || v.Model != "test-model" {
				t.Errorf("got %+v", v)
			}
		})
	}
}

func TestClassifierPromptCarriesRequest(t *testing.T) {
	p := ClassifierPrompt(&core.ScanRequest{Subject: "Invoice 42", Sender: "billing@example.com", Body: "Pay now"})
	for _, want := range []string{"Invoice 42", "billing@example.com", "Pay now"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
