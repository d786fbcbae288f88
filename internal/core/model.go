package core

import (
	"strings"
	"time"
)

// ObservedContent is a snapshot of the message currently rendered in the host.
// A nil *ObservedContent means no message is in view.
type ObservedContent struct {
	Subject string
	Sender  string
	Body    string
}

// TextSnapshot returns the body text of the observed message
func (c *ObservedContent) TextSnapshot() string {
	if c == nil {
		return ""
	}
	return c.Body
}

// Request builds a scan request from the observed content
func (c *ObservedContent) Request() ScanRequest {
	return ScanRequest{
		Subject: strings.TrimSpace(c.Subject),
		Sender:  strings.TrimSpace(c.Sender),
		Body:    strings.TrimSpace(c.Body),
	}
}

// PresenceState tells whether a message is currently in view
type PresenceState int

const (
	Absent PresenceState = iota
	Present
)

func (s PresenceState) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Transition is the outcome of comparing a new observation against the last one
type Transition int

const (
	NoChange Transition = iota
	Appeared
	Changed
	Disappeared
)

func (t Transition) String() string {
	switch t {
	case Appeared:
		return "appeared"
	case Changed:
		return "changed"
	case Disappeared:
		return "disappeared"
	default:
		return "no_change"
	}
}

// ScanRequest is the payload sent to a classifier
type ScanRequest struct {
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Body    string `json:"body"`
}

// Complete reports whether every field carries text. Partial requests are never sent.
func (r ScanRequest) Complete() bool {
	return strings.TrimSpace(r.Subject) != "" &&
		strings.TrimSpace(r.Sender) != "" &&
		strings.TrimSpace(r.Body) != ""
}

// Status is the normalized classification of a message
type Status string

const (
	StatusSafe       Status = "safe"
	StatusSuspicious Status = "suspicious"
	StatusMalicious  Status = "malicious"
	StatusUnknown    Status = "unknown"
)

// StatusFromLabel maps a classifier label onto a Status
func StatusFromLabel(label string) Status {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "safe", "legitimate", "ham", "clean", "not_spam":
		return StatusSafe
	case "suspicious", "spam", "suspicious_url", "promotional":
		return StatusSuspicious
	case "phishing", "scam", "fraudulent", "fraud", "malicious", "malware":
		return StatusMalicious
	default:
		return StatusUnknown
	}
}

// Outcome is the terminal state of a scan attempt
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "completed"
	}
}

// Verdict is what a classifier returns before the orchestrator normalizes it
type Verdict struct {
	Label    string
	Reason   string
	Risk     *float64
	MLTiming *time.Duration
	Model    string
}

// ScanResult is the normalized, immutable result of one scan attempt
type ScanResult struct {
	Status   Status
	Label    string
	Reason   string
	Outcome  Outcome
	Timing   time.Duration
	MLTiming *time.Duration
	Risk     *float64
	Model    string
}

// LinkVerdict is the scoring service's opinion of a single URL
type LinkVerdict struct {
	URL         string   `json:"url"`
	Status      string   `json:"status"`
	Probability *float64 `json:"probability,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// AlertLabel is the dedup key for the IoT sink
type AlertLabel string

// NoMail is the sentinel label published when the message leaves the view
const NoMail AlertLabel = "no_mail"

// DispatcherMemory is the per-watch state shared by the tracker and the dispatcher.
// It is owned by the lifecycle controller and only touched from its event loop.
type DispatcherMemory struct {
	LastFingerprint          string
	LastAlertLabel           AlertLabel
	MessagePreviouslyPresent bool
}

// Reset clears the memory for a fresh watch
func (m *DispatcherMemory) Reset() {
	*m = DispatcherMemory{}
}

// UIMessage is delivered to display surfaces
type UIMessage struct {
	Action string `json:"action"`
	Result string `json:"result"`
}

// DisplayResultAction is the action carried by every UIMessage
const DisplayResultAction = "displayResult"

// Alert is the payload published to IoT sinks
type Alert struct {
	Message string   `json:"message"`
	Topic   string   `json:"topic"`
	Risk    *float64 `json:"risk,omitempty"`
}

// CacheEntry is a cached verdict keyed by request digest
type CacheEntry struct {
	Key       string
	Label     string
	Reason    string
	Risk      *float64
	LastSeen  time.Time
	ExpiresAt time.Time
}
