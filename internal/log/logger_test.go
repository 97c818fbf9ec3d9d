package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer, level Level) *DefaultLogger {
	l := New(LoggerConfig{Level: level, Output: buf})
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, InfoLevel)

	l.Debug("hidden")
	l.Info("search done", "paths", 2, "truncated", false)

	assert.Equal(t, "[2026-01-02 03:04:05] INFO: search done paths=2 truncated=false\n", buf.String())
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, DebugLevel)
	l.SetJSONOutput(true)

	l.Warn("store failure", "edge", "e1", "error", errors.New("closed"), "level", "x")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "store failure", entry["message"])
	assert.Equal(t, "e1", entry["edge"])
	assert.Equal(t, "closed", entry["error"])
	assert.Equal(t, "x", entry["field.level"], "reserved keys are prefixed")
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, ErrorLevel)

	l.Warn("dropped")
	assert.Empty(t, buf.String())

	l.SetLevel(DebugLevel)
	l.Debug("kept")
	assert.True(t, strings.Contains(buf.String(), "DEBUG: kept"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestFormatMessage_OddArgs(t *testing.T) {
	assert.Equal(t, "msg arg=x k=v", formatMessage("msg", "x", "k", "v"))
	assert.Equal(t, "msg", formatMessage("msg"))
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing", "k", "v")
	l.SetLevel(DebugLevel)
}
