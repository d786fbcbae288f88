package core

import (
	"errors"
	"fmt"
)

var (
	// ErrHostInvalidated is wrapped by host adapters when the page or browser connection is gone
	ErrHostInvalidated = errors.New("host context invalidated")
	// ErrBackendOffline is returned when the classifier cannot be reached
	ErrBackendOffline = errors.New("backend offline")
	// ErrBadStatus is returned when the classifier answers with a non-2xx status
	ErrBadStatus = errors.New("unexpected classifier status")
	// ErrMalformedResponse is returned when the classifier reply cannot be decoded
	ErrMalformedResponse = errors.New("malformed classifier response")
)

// StatusError reports a non-2xx classifier reply
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("classifier returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("classifier returned HTTP %d: %s", e.Code, e.Detail)
}

// Unwrap lets errors.Is match ErrBadStatus
func (e *StatusError) Unwrap() error {
	return ErrBadStatus
}
