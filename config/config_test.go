package config

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "SMARTLIB_DB_DRIVER", "SMARTLIB_DB_DSN", "SMARTLIB_LOGIN_EVERY_SECONDS", "SMARTLIB_TOP_BOOKS", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE")

	cfg := Load()
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "library.db", cfg.DBDSN)
	assert.Equal(t, 12*time.Second, cfg.LoginEvery)
	assert.Equal(t, 5, cfg.TopBooks)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.True(t, cfg.OTLPInsecure)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SMARTLIB_DB_DRIVER", "pgx")
	t.Setenv("SMARTLIB_TOP_BOOKS", "10")
	t.Setenv("SMARTLIB_CONNECT_ATTEMPTS", "not-a-number")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")

	cfg := Load()
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.False(t, cfg.OTLPInsecure)
	assert.Equal(t, 10, cfg.TopBooks)
	assert.Equal(t, 5, cfg.ConnectAttempts)
}

func TestGetBool(t *testing.T) {
	t.Setenv("SMARTLIB_FLAG", "true")
	assert.True(t, GetBool("SMARTLIB_FLAG", false))

	t.Setenv("SMARTLIB_FLAG", "maybe")
	assert.False(t, GetBool("SMARTLIB_FLAG", false))

	unsetenv(t, "SMARTLIB_FLAG")
	assert.True(t, GetBool("SMARTLIB_FLAG", true))
}

func TestInvalidValueIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "sometimes")
	assert.True(t, Load().OTLPInsecure)
	assert.Contains(t, buf.String(), "key=OTEL_EXPORTER_OTLP_INSECURE")
	assert.Contains(t, buf.String(), "level=WARN")
}
