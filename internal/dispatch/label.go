package dispatch

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mikey/mail-shield/internal/core"
)

// NoMailMessage is shown when the message leaves the view
const NoMailMessage = "No mail detected"

var labelPattern = regexp.MustCompile(`(?i)Status:\s*(\w+)`)

// ParseLabel extracts the alert label from the first "Status: <TOKEN>" in
// message, so decorated lines such as "🛡️ Status: SAFE" still parse.
// It returns false when the message carries no such token.
func ParseLabel(message string) (core.AlertLabel, bool) {
	m := labelPattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return core.AlertLabel(strings.ToLower(m[1])), true
}

// FormatResult renders a scan result for display. Only completed results
// carry a Status token.
func FormatResult(r core.ScanResult) string {
	switch r.Outcome {
	case core.OutcomeTimedOut:
		if r.Reason == "" {
			return "Scan timed out"
		}
		return upperFirst(r.Reason)
	case core.OutcomeFailed:
		if r.Reason == "" {
			return "Scan failed"
		}
		return "Scan failed: " + r.Reason
	}

	label := r.Label
	if label == "" {
		label = string(r.Status)
	}
	label = strings.ToUpper(label)
	if r.Reason == "" {
		return "Status: " + label
	}
	return fmt.Sprintf("Status: %s (%s)", label, r.Reason)
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
