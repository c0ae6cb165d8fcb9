package logger

import (
	"bytes"
	"log/slog"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "smartlib", slog.LevelWarn)

	log.Info("hidden")
	log.Warn("book borrowed failed", "book_id", 7)

	var entry map[string]any
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "smartlib", entry["service"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, float64(7), entry["book_id"])
}
