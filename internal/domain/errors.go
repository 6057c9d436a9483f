package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes and the websocket
// layer to failure acknowledgments.
var (
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrItemNotFound        = errors.New("item_not_found")
	ErrSessionNotFound     = errors.New("session_not_found")
	ErrOrderTerminal       = errors.New("order_terminal")
	ErrOrderLocked         = errors.New("order_locked")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
	ErrPermissionDenied    = errors.New("permission_denied")
)

// ValidationError represents a request validation failure. Field names
// the offending field so callers can target the exact corrective action;
// it is empty for request-shape failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Violations is the accumulated result of validating an order against
// its channel policy. A nil/empty Violations means the order is valid.
type Violations []ValidationError

func (v Violations) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// AsError returns the violations as an error, or nil when there are none.
func (v Violations) AsError() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// InvalidTransitionError is returned for a status change not permitted
// from the order's current state. The order is left unchanged.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}
