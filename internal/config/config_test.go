package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"SAGE_DB_PATH", "SAGE_LISTEN_ADDR", "SAGE_VECTOR_PATH",
		"SAGE_OPENAI_API_KEY", "SAGE_HTTP_TIMEOUT", "SAGE_SEARCH_LIMIT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "sage.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "sage.hnsw", cfg.VectorPath)
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5, cfg.SearchLimit)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SAGE_DB_PATH", "/tmp/test.db")
	t.Setenv("SAGE_LISTEN_ADDR", ":9999")
	t.Setenv("SAGE_OPENAI_API_KEY", "sk-test")
	t.Setenv("SAGE_HTTP_TIMEOUT", "5s")
	t.Setenv("SAGE_SEARCH_LIMIT", "20")

	cfg := Load()
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 20, cfg.SearchLimit)
}

func TestLoadIgnoresBadValues(t *testing.T) {
	t.Setenv("SAGE_HTTP_TIMEOUT", "not a duration")
	t.Setenv("SAGE_SEARCH_LIMIT", "-3")

	cfg := Load()
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5, cfg.SearchLimit)
}
