package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string
	RedisURL   string
	// TabID namespaces every stored key so two engine processes never see
	// each other's sessions. A fresh UUID is used when unset.
	TabID          string
	SessionTTL     time.Duration
	ResultTTL      time.Duration
	BackendURL     string
	BackendToken   string
	BackendTimeout time.Duration
	// TickInterval is the countdown period. Zero disables automatic ticking.
	TickInterval        time.Duration
	AnswerSyncQueueSize int
	// AnswerRateLimit caps answer selections per session per minute. Zero
	// disables the limit.
	AnswerRateLimit int
	// AllowRetryAfterTimeout lets a manual submit re-enter Submitting after a
	// timeout-triggered submission failed. Automatic retries never happen.
	AllowRetryAfterTimeout bool
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort:             getEnv("SERVER_PORT", "8090"),
		GinMode:                getEnv("GIN_MODE", "debug"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "pretty"),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/1"),
		TabID:                  getEnv("TAB_ID", uuid.NewString()),
		SessionTTL:             time.Duration(getEnvInt("SESSION_TTL_MINUTES", 720)) * time.Minute,
		ResultTTL:              time.Duration(getEnvInt("RESULT_TTL_MINUTES", 60)) * time.Minute,
		BackendURL:             getEnv("BACKEND_URL", "http://localhost:8080"),
		BackendToken:           getEnv("BACKEND_TOKEN", ""),
		BackendTimeout:         time.Duration(getEnvInt("BACKEND_TIMEOUT_SECONDS", 15)) * time.Second,
		TickInterval:           time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		AnswerSyncQueueSize:    getEnvInt("ANSWER_SYNC_QUEUE_SIZE", 256),
		AnswerRateLimit:        getEnvInt("ANSWER_RATE_LIMIT_PER_MINUTE", 120),
		AllowRetryAfterTimeout: getEnvBool("ALLOW_RETRY_AFTER_TIMEOUT", false),
		AllowedOrigins:         parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
