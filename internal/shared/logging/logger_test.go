package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/Amit95688/TDS/internal/shared/utils/id"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debug(format string, args ...any) { r.add("DEBUG", format, args...) }
func (r *recordingLogger) Info(format string, args ...any)  { r.add("INFO", format, args...) }
func (r *recordingLogger) Warn(format string, args ...any)  { r.add("WARN", format, args...) }
func (r *recordingLogger) Error(format string, args ...any) { r.add("ERROR", format, args...) }

func (r *recordingLogger) add(level, format string, args ...any) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func TestComponentLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(LogConfig{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Configure(LogConfig{}) })

	logger := NewComponentLogger("BuildService")
	logger.Info("task %s recorded", "quiz-app")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "task quiz-app recorded", entry["msg"])
	assert.Equal(t, "BuildService", entry["component"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestComponentLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(LogConfig{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(LogConfig{}) })

	logger := NewComponentLogger("Waiter")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestFromContextTagsLogID(t *testing.T) {
	var buf bytes.Buffer
	Configure(LogConfig{Format: "text", Output: &buf})
	t.Cleanup(func() { Configure(LogConfig{}) })

	ctx := id.WithLogID(context.Background(), "log-abc")
	FromContext(ctx, NewComponentLogger("Router")).Info("hello")

	assert.Contains(t, buf.String(), "log_id=log-abc")
}

func TestWithLogIDWrapsForeignLoggers(t *testing.T) {
	rec := &recordingLogger{}
	WithLogID(rec, "log-1").Warn("slow poll %d", 3)

	require.Len(t, rec.lines, 1)
	assert.True(t, strings.HasPrefix(rec.lines[0], "WARN logid=log-1 slow poll 3"))
}

func TestOrNopHandlesNilPointer(t *testing.T) {
	var rec *recordingLogger
	logger := OrNop(rec)
	assert.NotPanics(t, func() { logger.Info("nothing") })
	assert.True(t, IsNil(rec))
	assert.False(t, IsNil(Nop()))
}
