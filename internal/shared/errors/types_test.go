package errors

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "explicit transient error", err: NewTransientError(errors.New("test"), "transient"), expected: true},
		{name: "explicit permanent error", err: NewPermanentError(errors.New("test"), "permanent"), expected: false},
		{name: "rate limit 429", err: fmt.Errorf("API error 429: rate limit exceeded"), expected: true},
		{name: "server error 502", err: fmt.Errorf("502 bad gateway"), expected: true},
		{name: "timeout error", err: fmt.Errorf("context deadline exceeded"), expected: true},
		{name: "connection refused", err: fmt.Errorf("dial tcp 127.0.0.1:8000: connect: connection refused"), expected: true},
		{name: "syscall connection refused", err: syscall.ECONNREFUSED, expected: true},
		{name: "net error", err: &mockNetError{timeout: true}, expected: true},
		{name: "unauthorized 401", err: fmt.Errorf("HTTP 401: unauthorized"), expected: false},
		{name: "not found 404", err: fmt.Errorf("HTTP 404: not found"), expected: false},
		{name: "regular error", err: errors.New("regular error"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsTransient(tt.err); result != tt.expected {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "explicit permanent error", err: NewPermanentError(errors.New("test"), "permanent"), expected: true},
		{name: "explicit transient error", err: NewTransientError(errors.New("test"), "transient"), expected: false},
		{name: "forbidden 403", err: fmt.Errorf("HTTP 403: forbidden"), expected: true},
		{name: "file not found", err: fmt.Errorf("file not found: index.html"), expected: true},
		{name: "rate limit 429", err: fmt.Errorf("HTTP 429: rate limit exceeded"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsPermanent(tt.err); result != tt.expected {
				t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantNil   bool
		transient bool
	}{
		{status: http.StatusOK, wantNil: true},
		{status: http.StatusFound, wantNil: true},
		{status: http.StatusBadRequest, transient: false},
		{status: http.StatusNotFound, transient: false},
		{status: http.StatusRequestTimeout, transient: true},
		{status: http.StatusTooManyRequests, transient: true},
		{status: http.StatusServiceUnavailable, transient: true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus("https://eval.example/notify", tt.status)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient(%v) = %v, want %v", err, IsTransient(err), tt.transient)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
				t.Errorf("expected wrapped StatusError with %d, got %v", tt.status, err)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := errors.New("base error")

	if !errors.Is(NewTransientError(baseErr, "transient message"), baseErr) {
		t.Errorf("TransientError should wrap base error")
	}
	if !errors.Is(NewPermanentError(baseErr, "permanent message"), baseErr) {
		t.Errorf("PermanentError should wrap base error")
	}
}

type mockNetError struct {
	timeout   bool
	temporary bool
}

func (e *mockNetError) Error() string   { return "mock network error" }
func (e *mockNetError) Timeout() bool   { return e.timeout }
func (e *mockNetError) Temporary() bool { return e.temporary }
