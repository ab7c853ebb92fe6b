package pipeline

import (
	"errors"

	"github.com/mineralsss/tiktoker/shortener"
	"github.com/mineralsss/tiktoker/tiktok"
)

// ErrorClass represents whether a failed resolution is worth retrying.
type ErrorClass int

const (
	// ErrorClassRetryable indicates the operation should be retried (transient errors).
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal indicates the operation should not be retried (permanent errors).
	ErrorClassFatal
	// ErrorClassUnknown indicates the error type cannot be determined.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyResolveError sorts pipeline failures into retryable vs fatal.
//
// Fatal (non-retryable):
//   - unresolvable redirects (dead or non-video short links)
//   - videos the upstream reports as missing or removed
//
// Retryable (transient):
//   - upstream timeouts
//   - shortening service failures (the media itself resolved fine)
//
// Anything else is treated as retryable to avoid giving up too early.
func ClassifyResolveError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}

	var redirectErr *tiktok.RedirectError
	var notFoundErr *tiktok.NotFoundError
	if errors.As(err, &redirectErr) || errors.As(err, &notFoundErr) {
		return ErrorClassFatal
	}

	var timeoutErr *tiktok.TimeoutError
	var serviceErr *shortener.ServiceError
	if errors.As(err, &timeoutErr) || errors.As(err, &serviceErr) {
		return ErrorClassRetryable
	}

	return ErrorClassRetryable
}

// IsRetryableError checks if an error should trigger retry logic.
func IsRetryableError(err error) bool {
	return ClassifyResolveError(err) == ErrorClassRetryable
}

// IsFatalError checks if an error should not be retried.
func IsFatalError(err error) bool {
	return ClassifyResolveError(err) == ErrorClassFatal
}
