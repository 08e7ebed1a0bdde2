package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrInvalidClaim is returned when the request has no institution name
	ErrInvalidClaim = errors.New("institution claim has no name")

	// ErrRegistryUnavailable is recorded when no trusted registry is loaded
	ErrRegistryUnavailable = errors.New("trusted registry not loaded")

	// ErrInvalidArtifact is recorded when artifact bytes are not a decodable image
	ErrInvalidArtifact = errors.New("artifact is not a decodable image")

	// ErrInvalidURL is recorded when a website cannot be parsed as a URL
	ErrInvalidURL = errors.New("invalid website URL")

	// ErrOCRUnavailable is recorded when no text recognizer is configured
	ErrOCRUnavailable = errors.New("text recognition unavailable")

	// ErrModelUnavailable is recorded when no tamper model is loaded
	ErrModelUnavailable = errors.New("tamper model unavailable")

	// ErrUnparsableDate is recorded when a declared date is not a calendar date
	ErrUnparsableDate = errors.New("unparsable date")
)

// DegradedReason categorizes why a check could not produce a result
type DegradedReason string

const (
	ReasonRegistryUnavailable DegradedReason = "registry_unavailable"
	ReasonInvalidInput        DegradedReason = "invalid_input"
	ReasonTimeout             DegradedReason = "timeout"
	ReasonNetwork             DegradedReason = "network"
	ReasonLookupFailed        DegradedReason = "lookup_failed"
	ReasonParseError          DegradedReason = "parse_error"
	ReasonUnavailable         DegradedReason = "unavailable"
	ReasonInternal            DegradedReason = "internal"
	ReasonNoWebsite           DegradedReason = "no-website"
	ReasonNoData              DegradedReason = "no_data"
)

// CheckError is an error carrying a degraded reason
type CheckError struct {
	Reason DegradedReason
	Op     string
	Err    error
}

// NewCheckError wraps err with an operation name and reason
func NewCheckError(reason DegradedReason, op string, err error) *CheckError {
	return &CheckError{Reason: reason, Op: op, Err: err}
}

func (e *CheckError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// ReasonOf maps an error onto the degraded-reason taxonomy
func ReasonOf(err error) DegradedReason {
	if err == nil {
		return ""
	}

	var ce *CheckError
	if errors.As(err, &ce) {
		return ce.Reason
	}

	switch {
	case errors.Is(err, ErrRegistryUnavailable):
		return ReasonRegistryUnavailable
	case errors.Is(err, ErrInvalidArtifact), errors.Is(err, ErrInvalidURL):
		return ReasonInvalidInput
	case errors.Is(err, ErrUnparsableDate):
		return ReasonParseError
	case errors.Is(err, ErrOCRUnavailable), errors.Is(err, ErrModelUnavailable):
		return ReasonUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ReasonTimeout
		}
		return ReasonLookupFailed
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}

	return ReasonInternal
}
