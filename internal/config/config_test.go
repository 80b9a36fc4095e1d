package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/newswire_test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 768, cfg.Embedding.Dimension)
	require.Equal(t, 64, cfg.Embedding.BatchSize)
	require.Equal(t, 0.30, cfg.Trends.Eps)
	require.Equal(t, 5, cfg.Trends.MinSamples)
	require.Equal(t, 10*time.Minute, cfg.Trends.TTL)
	require.Equal(t, 5*time.Minute, cfg.Poller.BackoffBase)
	require.Equal(t, 6*time.Hour, cfg.Poller.BackoffCap)
	require.Equal(t, 10, cfg.Poller.MaxFailures)
	require.Equal(t, 3, cfg.Worker.MaxAttempts)
	require.Equal(t, 200, cfg.Worker.MinTextLength)
	require.Equal(t, 5*time.Minute, cfg.LeaseFor)
	require.Equal(t, 30*time.Second, cfg.GraceFor)
	require.Equal(t, "english", cfg.FTSConfig)
	require.Contains(t, cfg.Poller.TrackingDenylist, "fbclid")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/newswire_test")
	t.Setenv("EMBEDDING_DIM", "1536")
	t.Setenv("EMBEDDING_BATCH_SIZE", "100")
	t.Setenv("CHUNK_INTERVAL", "60")
	t.Setenv("SERVICE_MODE", "fts-continuous")
	t.Setenv("TRENDS_TTL_MINUTES", "5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 1536, cfg.Embedding.Dimension)
	require.Equal(t, 100, cfg.Embedding.BatchSize)
	require.Equal(t, time.Minute, cfg.Chunking.Interval)
	require.Equal(t, "fts-continuous", cfg.ServiceMode)
	require.Equal(t, 5*time.Minute, cfg.Trends.TTL)
}

func TestLoad_RequiresDSN(t *testing.T) {
	t.Setenv("PG_DSN", "")
	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "PG_DSN")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Config{}
		c.Database.DSN = "postgres://x"
		c.Embedding.Dimension = 768
		c.Embedding.BatchSize = 64
		c.Trends.Eps = 0.3
		c.Trends.MinSamples = 5
		return c
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Embedding.Dimension = 0
	require.Error(t, c.Validate())

	c = base()
	c.Trends.Eps = 2.5
	require.Error(t, c.Validate())

	c = base()
	c.ServiceMode = "everything-continuous"
	require.Error(t, c.Validate())
}
