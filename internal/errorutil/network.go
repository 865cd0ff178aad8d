package errorutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// NetworkError describes a failed HTTP exchange with one of the remote
// services (weather providers, the gauge site, the social gateway).
type NetworkError struct {
	Operation  string // e.g. "forecast request", "album upload"
	URL        string
	StatusCode int // 0 when no response was received
	Underlying error
	Retryable  bool
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed for %s: HTTP %d: %v", e.Operation, e.URL, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Operation, e.URL, e.Underlying)
}

func (e *NetworkError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether the error suggests retrying might be worthwhile
func (e *NetworkError) IsRetryable() bool {
	return e.Retryable
}

// NewNetworkError wraps a transport-level failure (no HTTP response).
func NewNetworkError(operation, url string, err error) *NetworkError {
	return &NetworkError{
		Operation:  operation,
		URL:        url,
		Underlying: err,
		Retryable:  isRetryableError(err),
	}
}

// NewStatusError wraps a non-success HTTP response.
func NewStatusError(operation, url string, statusCode int, err error) *NetworkError {
	if err == nil {
		err = errors.New(http.StatusText(statusCode))
	}
	return &NetworkError{
		Operation:  operation,
		URL:        url,
		StatusCode: statusCode,
		Underlying: err,
		Retryable:  isRetryableStatus(statusCode),
	}
}

// LogNetworkError logs a network error with appropriate structured context
func LogNetworkError(logger *slog.Logger, netErr *NetworkError) *NetworkError {
	if logger == nil {
		return netErr
	}

	attrs := []slog.Attr{
		slog.String("operation", netErr.Operation),
		slog.String("url", netErr.URL),
		slog.String("error", netErr.Underlying.Error()),
		slog.Bool("retryable", netErr.Retryable),
	}
	if netErr.StatusCode > 0 {
		attrs = append(attrs, slog.Int("status_code", netErr.StatusCode))
	}

	level := slog.LevelError
	if netErr.Retryable {
		level = slog.LevelWarn
	}

	logger.LogAttrs(context.Background(), level, "Network operation failed", attrs...)
	return netErr
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return strings.Contains(err.Error(), "connection refused")
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
