package search

import (
	"errors"
	"fmt"

	"github.com/alexzheng587/corels/internal/cache"
)

var (
	// ErrConfiguration is matched by every ConfigurationError.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrInvariantViolation is matched by every InvariantViolation.
	ErrInvariantViolation = errors.New("invariant violation")
)

// ConfigurationError reports a setting rejected before the search starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configErrorf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InvariantViolation aborts a search whose internal state is inconsistent.
// Existing and Incoming summarize the conflicting entries when there are two.
type InvariantViolation struct {
	Layer    int
	Prefix   cache.Prefix
	Reason   string
	Existing string
	Incoming string

	cause error
}

func (e *InvariantViolation) Error() string {
	msg := fmt.Sprintf("invariant violation at length %d, prefix %s: %s", e.Layer, e.Prefix, e.Reason)
	if e.Existing != "" || e.Incoming != "" {
		msg += fmt.Sprintf(" (existing: %s; incoming: %s)", e.Existing, e.Incoming)
	}
	return msg
}

// Is reports whether target is ErrInvariantViolation.
func (e *InvariantViolation) Is(target error) bool { return target == ErrInvariantViolation }

func (e *InvariantViolation) Unwrap() error { return e.cause }
