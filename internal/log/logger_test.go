package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatJSON, Output: &buf}).WithComponent(ComponentWorker)

	logger.Info("synced", FieldCount, 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "synced", line["msg"])
	assert.Equal(t, ComponentWorker, line[FieldComponent])
	assert.EqualValues(t, 3, line[FieldCount])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatJSON, Output: &buf})

	ctx := NewContext(context.Background(), logger.With(FieldRequestID, "req_1"))
	ctx = WithAttrs(ctx, FieldUserID, "u1")
	FromContext(ctx).InfoContext(ctx, "hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req_1", line[FieldRequestID])
	assert.Equal(t, "u1", line[FieldUserID])

	assert.Equal(t, ComponentApp, FromContext(context.Background()).Component())
}
