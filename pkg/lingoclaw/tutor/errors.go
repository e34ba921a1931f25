// Package tutor – errors.go defines the error taxonomy surfaced by the
// orchestration core. Every failure of GenerateReply resolves to one of
// these kinds so the HTTP layer can map it to a stable status code.
package tutor

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a user or another record is missing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for unsupported or malformed input,
	// such as an unknown language code.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRateLimitExceeded is returned when the daily token budget would be
	// exceeded by the request.
	ErrRateLimitExceeded = errors.New("token budget exceeded")

	// ErrProvider is returned when the completion provider could not produce
	// a usable reply.
	ErrProvider = errors.New("completion provider error")
)

// ErrorKind is the coarse classification used by callers.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidArgument   ErrorKind = "invalid_argument"
	KindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
	KindProvider          ErrorKind = "provider"
	KindInternal          ErrorKind = "internal"
)

// HTTPStatus returns the status code the HTTP layer should answer with.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindProvider:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindOf classifies err. Nil errors have no kind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimitExceeded):
		return KindRateLimitExceeded
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrProvider):
		return KindProvider
	default:
		return KindInternal
	}
}

// RateLimitError carries the remaining budget so clients can tell the user
// how much is left today.
type RateLimitError struct {
	Remaining int
	Limit     int
	Requested int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("daily token budget exceeded: %d of %d tokens remaining, request needs ~%d",
		e.Remaining, e.Limit, e.Requested)
}

// Is makes errors.Is(err, ErrRateLimitExceeded) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// ProviderError wraps a failed provider call. Body keeps the full provider
// response for diagnostics; Error() truncates it.
type ProviderError struct {
	StatusCode int
	Body       string
	Attempts   int
	Kind       LLMErrorKind
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Attempts > 1:
		return fmt.Sprintf("completion failed after %d attempts: %v", e.Attempts, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("provider returned %d: %s", e.StatusCode, truncate(e.Body, 200))
	default:
		return fmt.Sprintf("completion failed: %v", e.Err)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrProvider) match.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
