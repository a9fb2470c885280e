// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every runtime knob. Zero values mean "feature disabled"
// for the AI fields.
type Config struct {
	DBPath     string // SQLite file, ":memory:" for ephemeral
	ListenAddr string // public share server
	VectorPath string // vector index snapshot file

	APIKey      string // empty disables all AI features
	BaseURL     string
	EmbedModel  string
	ChatModel   string
	HTTPTimeout time.Duration
	SearchLimit int
}

// Load reads configuration from SAGE_* environment variables, with
// defaults suitable for local use.
func Load() Config {
	return Config{
		DBPath:     envOr("SAGE_DB_PATH", "sage.db"),
		ListenAddr: envOr("SAGE_LISTEN_ADDR", "127.0.0.1:8080"),
		VectorPath: envOr("SAGE_VECTOR_PATH", "sage.hnsw"),

		APIKey:      os.Getenv("SAGE_OPENAI_API_KEY"),
		BaseURL:     os.Getenv("SAGE_OPENAI_BASE_URL"),
		EmbedModel:  os.Getenv("SAGE_EMBED_MODEL"),
		ChatModel:   os.Getenv("SAGE_CHAT_MODEL"),
		HTTPTimeout: parseDurationOr("SAGE_HTTP_TIMEOUT", 60*time.Second),
		SearchLimit: parseIntOr("SAGE_SEARCH_LIMIT", 5),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}
