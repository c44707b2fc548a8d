// Package errs defines the error taxonomy shared across the pipeline.
//
// Every failure that crosses a package boundary inside the core is wrapped
// into a Kind so that callers (the retry engine, the HTTP routes, adapters)
// can make retry/status decisions without string-matching error messages.
// The string form is preserved on the JSON envelope boundary by Error().
package errs

import "fmt"

// Kind tags the category of failure, mirroring spec.md §7.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuth          Kind = "auth"
	KindNetworkBlock  Kind = "network_blocked"
	KindRateLimited   Kind = "rate_limited"
	KindTransientHTTP Kind = "transient_http"
	KindPermanentHTTP Kind = "permanent_http"
	KindRefresh       Kind = "refresh_error"
	KindCanceled      Kind = "canceled"
	KindUnknown       Kind = "unknown"
)

// Error is the core's tagged error type. StatusCode carries the upstream
// HTTP status when known (0 if the failure occurred before any response).
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retriable reports whether the default retry predicate (spec.md §4.4)
// would retry a failure of this kind.
func (e *Error) Retriable() bool {
	switch e.Kind {
	case KindRateLimited, KindTransientHTTP:
		return true
	default:
		return false
	}
}

func New(kind Kind, statusCode int, format string, args ...any) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, statusCode int, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, StatusCode: statusCode, Message: cause.Error(), Cause: cause}
}

// GetErrorMessage extracts a display message from any error, matching the
// teacher's getErrorMessage(e) convention used across response envelopes.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
