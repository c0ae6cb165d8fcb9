package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds runtime configuration for the smartlib tools.
type Config struct {
	Environment     string
	DBDriver        string
	DBDSN           string
	ConnectAttempts int
	LogLevel        string
	LoginBurst      int
	LoginEvery      time.Duration
	TopBooks        int
	OTLPEndpoint    string
	OTLPInsecure    bool
}

// Load constructs a Config from environment variables.
func Load() Config {
	return Config{
		Environment:     GetString("SMARTLIB_ENV", "development"),
		DBDriver:        GetString("SMARTLIB_DB_DRIVER", "sqlite3"),
		DBDSN:           GetString("SMARTLIB_DB_DSN", "library.db"),
		ConnectAttempts: GetInt("SMARTLIB_CONNECT_ATTEMPTS", 5),
		LogLevel:        GetString("SMARTLIB_LOG_LEVEL", "info"),
		LoginBurst:      GetInt("SMARTLIB_LOGIN_BURST", 5),
		LoginEvery:      time.Duration(GetInt("SMARTLIB_LOGIN_EVERY_SECONDS", 12)) * time.Second,
		TopBooks:        GetInt("SMARTLIB_TOP_BOOKS", 5),
		OTLPEndpoint:    GetString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:    GetBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}
}

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			slog.Warn("invalid config value, using default", "key", key, "value", value, "error", err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			slog.Warn("invalid config value, using default", "key", key, "value", value, "error", err)
			return fallback
		}
		return parsed
	}
	return fallback
}
