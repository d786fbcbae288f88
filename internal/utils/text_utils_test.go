package utils

import (
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"no limit", "hello", 0, "hello"},
		{"under limit", "hello", 10, "hello"},
		{"ascii", "hello world", 5, "hello"},
		{"counts characters not bytes", "héllo wörld", 7, "héllo w"},
		{"cjk", "日本語テキスト", 3, "日本語"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tp.TruncateText(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("TruncateText(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

func TestProcessText_DropsInvalidBytes(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	got := tp.ProcessText("ab\xffcd", 3)
	if got != "abc" {
		t.Errorf("ProcessText = %q, want %q", got, "abc")
	}
}

func TestDecodeJSONReply(t *testing.T) {
	var out struct {
		Status string `json:"status"`
	}

	if err := DecodeJSONReply(`{"status":"safe"}`, &out); err != nil || out.Status != "safe" {
		t.Fatalf("plain JSON: status=%q err=%v", out.Status, err)
	}

	out.Status = ""
	reply := "Here you go:\n```json\n{\"status\": \"phishing\"}\n```"
	if err := DecodeJSONReply(reply, &out); err != nil || out.Status != "phishing" {
		t.Fatalf("fenced JSON: status=%q err=%v", out.Status, err)
	}

	if err := DecodeJSONReply("no json here", &out); err == nil {
		t.Error("expected error for reply without JSON")
	}
}
