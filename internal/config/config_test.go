package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WATER_AI_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":50051", cfg.Server.Address)
	assert.Equal(t, ":8000", cfg.HTTP.Address)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 300*time.Second, cfg.Cache.PredictionTTL)
	assert.Equal(t, "plant.sensors", cfg.Ingest.Topic)
	assert.Equal(t, 120, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":6000"
models:
  dir: /srv/models
cache:
  backend: redis
  addr: valkey:6379
ingest:
  enabled: true
  brokers: [kafka-1:9092]
rateLimit:
  requests: 10
`), 0o644))

	t.Setenv("WATER_AI_MODELS_DIR", "/override/models")
	t.Setenv("WATER_AI_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("WATER_AI_LOG_FORMAT", "json")
	t.Setenv("WATER_AI_CACHE_TTL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.Server.Address)
	assert.Equal(t, ":2112", cfg.Server.MetricsAddress, "unset keys keep defaults")
	assert.Equal(t, "/override/models", cfg.Models.Dir)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "valkey:6379", cfg.Cache.Addr)
	assert.Equal(t, 45*time.Second, cfg.Cache.PredictionTTL)
	assert.True(t, cfg.Ingest.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Ingest.Brokers)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [::"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
