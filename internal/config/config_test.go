package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("KNOWLEDGE_TOP_K", "")
	t.Setenv("LLM_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "xlsx", cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 1, cfg.Pipeline.GenerationRetries)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sheets")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadPostgresNeedsDSN(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "xlsx")
	t.Setenv("KNOWLEDGE_TOP_K", "5")
	t.Setenv("KNOWLEDGE_MIN_SCORE", "0.25")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Knowledge.TopK)
	assert.InDelta(t, 0.25, cfg.Knowledge.MinScore, 1e-9)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
}
