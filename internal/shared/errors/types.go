// Package errors classifies failures from remote collaborators as transient
// (worth retrying) or permanent.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// TransientError marks a failure that may succeed on retry.
type TransientError struct {
	Err     error
	Message string
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that will not succeed on retry.
type PermanentError struct {
	Err     error
	Message string
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient.
func NewTransientError(err error, message string) error {
	return &TransientError{Err: err, Message: message}
}

// NewPermanentError wraps err as permanent.
func NewPermanentError(err error, message string) error {
	return &PermanentError{Err: err, Message: message}
}

// StatusError reports a non-success HTTP response from a remote endpoint.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, http.StatusText(e.StatusCode))
}

// FromStatus converts an HTTP status into a classified error, or nil for 2xx/3xx.
func FromStatus(url string, status int) error {
	if status < http.StatusBadRequest {
		return nil
	}
	statusErr := &StatusError{URL: url, StatusCode: status}
	if transientStatus(status) {
		return NewTransientError(statusErr, "remote endpoint unavailable")
	}
	return NewPermanentError(statusErr, "remote endpoint rejected request")
}

func transientStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

var transientMarkers = []string{
	"429", "rate limit",
	"500", "502", "503", "504",
	"bad gateway", "service unavailable", "gateway timeout",
	"deadline exceeded", "timeout",
	"connection refused", "connection reset", "broken pipe", "eof",
}

var permanentMarkers = []string{
	"400", "401", "403", "404",
	"bad request", "unauthorized", "forbidden",
	"not found", "permission denied", "invalid",
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), transientMarkers)
}

// IsPermanent reports whether err will not succeed on retry.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return true
	}
	if IsTransient(err) {
		return false
	}
	return containsAny(strings.ToLower(err.Error()), permanentMarkers)
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
