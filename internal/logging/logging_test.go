package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", FormatText, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "slug", "TAX_RATE")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "slug=TAX_RATE")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("info", FormatJSON, &buf)
	require.NoError(t, err)

	logger.Info("parameter updated", "slug", "A")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "parameter updated", rec["msg"])
	assert.Equal(t, "A", rec["slug"])
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("info", "xml", nil)
	assert.Error(t, err)
}

func TestSecretRedaction(t *testing.T) {
	const value = "super-secret-key-12345"
	s := Secret(value)

	for _, format := range []string{FormatText, FormatJSON} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New("debug", format, &buf)
			require.NoError(t, err)

			logger.Debug("key loaded", "key", s)

			assert.Contains(t, buf.String(), redacted)
			assert.NotContains(t, buf.String(), value)
		})
	}

	assert.Equal(t, redacted, fmt.Sprintf("%s", s))
	assert.Equal(t, redacted, fmt.Sprintf("%v", s))
	assert.Equal(t, redacted, fmt.Sprintf("%#v", s))
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
