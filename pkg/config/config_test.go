package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-kg/argos/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"NEO4J_URI", "NEO4J_USER", "NEO4J_PASSWORD", "NEO4J_PASS", "NEO4J_DATABASE", "WDQS_BATCH", "WD_SEARCH_SLEEP", "WD_SEARCH_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt://localhost:7687", cfg.Database.URI)
	assert.Equal(t, "neo4j", cfg.Database.Username)
	assert.Equal(t, "graphrag", cfg.Database.Database)
	assert.Equal(t, 3, cfg.Concepts.MinGlobalFreq)
	assert.Equal(t, 6, cfg.Concepts.MaxTokens)
	assert.Equal(t, []string{"Terms", "Exaltations", "Triplicities", "Houses", "Decans"}, cfg.Concepts.Allowlist)
	assert.Equal(t, 40, cfg.Wikidata.BatchSize)
	assert.Equal(t, 4, cfg.Wikidata.MaxRetries)
	assert.Equal(t, 6*time.Second, cfg.Wikidata.RetrySleep)
	assert.Equal(t, 600*time.Millisecond, cfg.Wikidata.PolitePause)
	assert.Equal(t, 250*time.Millisecond, cfg.Wikidata.SearchSleep)
	assert.Equal(t, 10, cfg.Wikidata.SearchLimit)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://graph.internal:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("NEO4J_DATABASE", "argos")
	t.Setenv("WDQS_BATCH", "25")
	t.Setenv("WD_SEARCH_SLEEP", "0.5")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph.internal:7687", cfg.Database.URI)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "argos", cfg.Database.Database)
	assert.Equal(t, 25, cfg.Wikidata.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Wikidata.SearchSleep)
}

func TestLoadPasswordFallback(t *testing.T) {
	t.Setenv("NEO4J_PASSWORD", "")
	t.Setenv("NEO4J_PASS", "legacy-secret")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy-secret", cfg.Database.Password)
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{}
	assert.Error(t, cfg.Validate())

	cfg.Database.Password = "secret"
	assert.NoError(t, cfg.Validate())
}
