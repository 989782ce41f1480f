package async

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPanicLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *stubPanicLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *stubPanicLogger) contains(fragment string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.messages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func TestGoRecoversPanic(t *testing.T) {
	logger := &stubPanicLogger{}
	done := make(chan struct{})

	Go(logger, "notifier.deliver", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for goroutine")
	}

	require.Eventually(t, func() bool {
		return logger.contains("goroutine panic [notifier.deliver]: boom")
	}, time.Second, 10*time.Millisecond)
}

func TestRecoverWithoutName(t *testing.T) {
	logger := &stubPanicLogger{}
	func() {
		defer Recover(logger, "")
		panic("unnamed")
	}()
	assert.True(t, logger.contains("goroutine panic: unnamed"))
}

func TestRecoverHandlesNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover(nil, "nil-logger")
		panic("boom")
	})
}
