package types

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes venue call failures. Stage loops inspect the kind to
// decide whether to acknowledge a log record or leave it pending for
// redelivery.
type ErrorKind string

const (
	// ErrKindTransient covers HTTP 5xx, socket failures and rate limits.
	// The record stays unacknowledged and is retried on redelivery.
	ErrKindTransient ErrorKind = "transient"
	// ErrKindRejected is an authoritative venue rejection (bad size, bad
	// price, closed market). Retrying cannot succeed.
	ErrKindRejected ErrorKind = "rejected"
	// ErrKindInvalid marks structurally unprocessable input (decode or
	// validation failure). Poison records are acknowledged and dropped.
	ErrKindInvalid ErrorKind = "invalid"
)

// VenueError is the categorized failure of a venue call.
type VenueError struct {
	Kind    ErrorKind
	Venue   VenueKind
	Code    string // venue API error code when available
	Message string
	OrderID string
}

func (e *VenueError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s: %s order %s: %s (%s)", e.Venue, e.Kind, e.OrderID, e.Message, e.Code)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", e.Venue, e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Venue, e.Kind, e.Message)
}

// Transient builds a retryable venue error.
func Transient(venue VenueKind, format string, args ...any) *VenueError {
	return &VenueError{Kind: ErrKindTransient, Venue: venue, Message: fmt.Sprintf(format, args...)}
}

// Rejected builds an authoritative venue rejection.
func Rejected(venue VenueKind, code, format string, args ...any) *VenueError {
	return &VenueError{Kind: ErrKindRejected, Venue: venue, Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsTransient reports whether err is (or wraps) a transient venue error.
func IsTransient(err error) bool {
	var ve *VenueError
	return errors.As(err, &ve) && ve.Kind == ErrKindTransient
}
