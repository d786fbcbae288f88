package core

import (
	"context"
)

// Classifier defines the interface for remote message classification
type Classifier interface {
	// Classify scores a scan request
	Classify(ctx context.Context, req *ScanRequest) (*Verdict, error)
}

// CacheRepository defines the interface for caching verdicts
type CacheRepository interface {
	// Get retrieves a cached verdict
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// AlertPublisher sends IoT alerts
type AlertPublisher interface {
	Publish(ctx context.Context, alert Alert) error
}

// UISink is a display surface. Display must not block.
type UISink interface {
	Display(msg UIMessage)
}

// HostEvent is a signal raised by the host page
type HostEvent int

const (
	HostMutation HostEvent = iota
	HostNavigated
	HostHidden
	HostVisible
	HostUnloading
)

func (e HostEvent) String() string {
	switch e {
	case HostMutation:
		return "mutation"
	case HostNavigated:
		return "navigated"
	case HostHidden:
		return "hidden"
	case HostVisible:
		return "visible"
	case HostUnloading:
		return "unloading"
	default:
		return "unknown"
	}
}

// Host is the environment that renders the watched message.
// Errors caused by a torn-down host wrap ErrHostInvalidated.
type Host interface {
	// Watch registers for host events until stop is called or ctx ends
	Watch(ctx context.Context, onEvent func(HostEvent)) (stop func() error, err error)

	// Snapshot returns the message in view, or nil when there is none
	Snapshot(ctx context.Context) (*ObservedContent, error)

	// Alive probes the host connection
	Alive() error
}
