// Package coreerr defines the closed error-kind taxonomy shared by the
// adapter layer, retry policy, and coordinator (spec §7). Kinds are a
// stable contract; the underlying cause and display text are not.
package coreerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one of the closed set of error kinds the core recognizes.
type Kind int

const (
	// KindInternal is the zero value: an unexpected condition that has
	// been captured but not otherwise classified.
	KindInternal Kind = iota
	KindNotAvailable
	KindConnection
	KindTimeout
	KindRateLimit
	KindAuthentication
	KindCircuitOpen
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotAvailable:
		return "not_available"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindAuthentication:
		return "authentication"
	case KindCircuitOpen:
		return "circuit_open"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Retriable reports whether the default retry policy should attempt this
// kind again (spec §4.2: default retriable kinds are Timeout and
// Connection; RateLimit is retriable under its own schedule).
func (k Kind) Retriable() bool {
	switch k {
	case KindTimeout, KindConnection, KindRateLimit:
		return true
	default:
		return false
	}
}

// CoreError is the concrete error type carrying a Kind, the adapter it
// originated from (if any), and the wrapped cause.
type CoreError struct {
	Kind    Kind
	Adapter string
	Cause   error
}

func New(kind Kind, adapter string, cause error) *CoreError {
	return &CoreError{Kind: kind, Adapter: adapter, Cause: cause}
}

func (e *CoreError) Error() string {
	var b strings.Builder
	if e.Adapter != "" {
		fmt.Fprintf(&b, "[%s] ", e.Adapter)
	}
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause)
	}
	return b.String()
}

func (e *CoreError) Unwrap() error { return e.Cause }

// Is supports errors.Is comparisons against sentinel CoreError values that
// only set Kind (Adapter/Cause left zero), matching on Kind alone.
func (e *CoreError) Is(target error) bool {
	var other *CoreError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind from err if it is (or wraps) a *CoreError,
// defaulting to KindInternal otherwise.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// FormatUserMessage maps an error onto a user-facing phrase, decoupling
// display text from the error kind via substring matching on the
// underlying cause, per spec §7.
func FormatUserMessage(err error, adapter string) string {
	if err == nil {
		return ""
	}

	prefix := ""
	if adapter != "" {
		prefix = adapter + ": "
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection") || strings.Contains(msg, "connect"):
		return prefix + "connection failed; check network reachability"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return prefix + "request timed out; the backend may be slow or unresponsive"
	case strings.Contains(msg, "auth") || strings.Contains(msg, "api key") || strings.Contains(msg, "credential"):
		return prefix + "authentication failed; check credentials"
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return prefix + "rate limited; retry after backing off"
	case strings.Contains(msg, "not found") || strings.Contains(msg, "not installed"):
		return prefix + "backend not found or not installed"
	default:
		return prefix + err.Error()
	}
}
