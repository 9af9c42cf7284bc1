package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/streamgroup/types"
)

func TestSlogLogger_ImplementsInterface(t *testing.T) {
	t.Helper()
	var _ types.Logger = (*SlogLogger)(nil)
}

func TestNewSlog(t *testing.T) {
	t.Run("wraps provided logger", func(t *testing.T) {
		buf := &bytes.Buffer{}
		handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
		logger := NewSlog(slog.New(handler))

		require.NotNil(t, logger)
		require.NotNil(t, logger.logger)
	})

	t.Run("nil falls back to default", func(t *testing.T) {
		logger := NewSlog(nil)

		require.NotNil(t, logger.logger)
	})
}

func TestSlogLogger_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewSlog(slog.New(handler))

	logger.Debug("debug message", "thread", "app-StreamThread-1")
	logger.Info("info message", "client_id", "app")
	logger.Warn("warning message", "state", "Stopping")
	logger.Error("error message", "error", "timeout")

	output := buf.String()
	assert.Contains(t, output, "level=DEBUG")
	assert.Contains(t, output, "thread=app-StreamThread-1")
	assert.Contains(t, output, "level=INFO")
	assert.Contains(t, output, "client_id=app")
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "state=Stopping")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, "error=timeout")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := NewSlog(slog.New(handler))

	logger.Debug("debug message")
	logger.Info("info message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")

	logger.Warn("warn message")
	logger.Error("error message")

	output = buf.String()
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestSlogLogger_With(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewSlogJSON(buf, slog.LevelInfo).With("member_id", "m-1")

	logger.Info("departure requested", "group", "orders")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "departure requested", rec["msg"])
	require.Equal(t, "m-1", rec["member_id"])
	require.Equal(t, "orders", rec["group"])
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()

	var _ types.Logger = logger

	require.NotPanics(t, func() {
		logger.Debug("test message", "key", "value")
		logger.Info("test message", "key", "value")
		logger.Warn("test message", "key", "value")
		logger.Error("test message", "key", "value")
		logger.Fatal("test message", "key", "value") // must not exit
	})
}
