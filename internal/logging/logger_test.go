package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(level LogLevel, format LogFormat) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(level, format)
	l.SetOutput(&buf)
	return l, &buf
}

func TestLoggerJSONEntry(t *testing.T) {
	l, buf := newBufferedLogger(LevelDebug, FormatJSON)

	l.WithComponent("ledger").WithField("instrument", "VTI").Info("holding updated")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "holding updated", entry.Message)
	assert.Equal(t, "ledger", entry.Fields["component"])
	assert.Equal(t, "VTI", entry.Fields["instrument"])
	assert.Empty(t, entry.Caller)
}

func TestLoggerLevelFiltering(t *testing.T) {
	l, buf := newBufferedLogger(LevelWarn, FormatText)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "warn: shown")
}

func TestLoggerErrorCarriesCaller(t *testing.T) {
	l, buf := newBufferedLogger(LevelInfo, FormatText)

	l.WithError(errors.New("upstream 503")).Error("fetch failed")

	out := buf.String()
	assert.Contains(t, out, "upstream 503")
	assert.Contains(t, out, "caller=")
	assert.Contains(t, out, "logger_test.go")
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	l, buf := newBufferedLogger(LevelInfo, FormatJSON)

	child := l.WithField("range", "1y")
	l.Info("parent")
	child.Info("child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "range")
	assert.Contains(t, lines[1], "range")
}

func TestWithErrorNil(t *testing.T) {
	l := NewLogger(LevelInfo, FormatJSON)
	assert.Same(t, l, l.WithError(nil))
}

func TestFromContext(t *testing.T) {
	l := NewLogger(LevelDebug, FormatText)
	ctx := WithLogger(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLevelAndFormat(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, FormatText, ParseLogFormat("text"))
	assert.Equal(t, FormatJSON, ParseLogFormat("yaml"))
}
