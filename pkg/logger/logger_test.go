package logger_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkwatch/parkwatch/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, logger.ParseLevel(tt.input), "level %q", tt.input)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	require.NotNil(t, logger.New("info", "text"))
}

func TestNewWithWriter_Formats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger.NewWithWriter(&buf, "info", "text").Info("session established")
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "session established")

	buf.Reset()
	logger.NewWithWriter(&buf, "info", "json").Info("session established")
	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"msg":"session established"`)
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger.NewWithWriter(&buf, "info", "text").Debug("hidden")
	assert.Empty(t, buf.String(), "debug suppressed at info level")

	logger.NewWithWriter(&buf, "debug", "text").Debug("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger.NewWithWriter(&buf, "warn", "text").Info("hidden")
	assert.Empty(t, buf.String(), "info suppressed at warn level")
}
