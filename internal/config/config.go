// Package config loads process-wide configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider identifies which model backend is active. Exactly one is selected
// at startup; the choice is static configuration, never per-request.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Config holds all configuration values. Loaded once at startup and treated
// as read-only afterwards.
type Config struct {
	// HTTP server
	Port        string
	CORSOrigins []string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Model provider
	LLMProvider     Provider
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Review pipeline
	RateLimit       int           // submissions per client per window
	RateWindow      time.Duration // sliding window, evaluated at call time
	Workers         int           // dispatcher worker pool size
	QueueSize       int           // dispatcher queue capacity
	RetryAttempts   int           // provider call attempts per job
	RetryBackoff    time.Duration // initial backoff, doubles per attempt
	StatusInterval  time.Duration // status stream poll interval
	StatsTopIssues  int           // top-N issue descriptions in stats
	MaxExportRows   int           // CSV export row cap
	DefaultPageSize int

	// Auth
	JWTSecret      string
	TokenExpiry    time.Duration
	GoogleClientID string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: splitEnv("CORS_ORIGINS", "*"),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "codecritic"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "reviews"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     Provider(getEnv("LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:        getEnv("LLM_MODEL", "llama3.2"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		RateLimit:       getEnvInt("RATE_LIMIT", 10),
		RateWindow:      getEnvDuration("RATE_WINDOW", time.Hour),
		Workers:         getEnvInt("REVIEW_WORKERS", 4),
		QueueSize:       getEnvInt("REVIEW_QUEUE_SIZE", 64),
		RetryAttempts:   getEnvInt("LLM_RETRY_ATTEMPTS", 3),
		RetryBackoff:    getEnvDuration("LLM_RETRY_BACKOFF", 800*time.Millisecond),
		StatusInterval:  getEnvDuration("STATUS_POLL_INTERVAL", time.Second),
		StatsTopIssues:  getEnvInt("STATS_TOP_ISSUES", 10),
		MaxExportRows:   getEnvInt("EXPORT_MAX_ROWS", 10000),
		DefaultPageSize: getEnvInt("DEFAULT_PAGE_SIZE", 10),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		TokenExpiry:    getEnvDuration("TOKEN_EXPIRY", 120*time.Minute),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		LogFile:  getEnv("CODECRITIC_LOG_FILE", ""),
		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitEnv(key, defaultVal string) []string {
	raw := getEnv(key, defaultVal)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
