package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/water-ai/internal/cache"
	"github.com/miradorstack/water-ai/internal/metrics"
	"github.com/miradorstack/water-ai/internal/models"
)

const (
	// DefaultPredictionTTL bounds how long a cached prediction is served.
	DefaultPredictionTTL = 300 * time.Second

	predictionKeyPrefix = "prediction:"
)

// PredictionCache memoises single-model predictions by dataset and feature set.
type PredictionCache struct {
	provider cache.Provider
	ttl      time.Duration
	logger   *slog.Logger
}

// NewPredictionCache wraps provider. A nil provider disables caching.
func NewPredictionCache(provider cache.Provider, ttl time.Duration, logger *slog.Logger) *PredictionCache {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if ttl <= 0 {
		ttl = DefaultPredictionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionCache{provider: provider, ttl: ttl, logger: logger}
}

// PredictionKey hashes the dataset key and the sorted feature pairs.
func PredictionKey(dataset string, features models.FeatureVector) string {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(dataset)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(features[name], 'g', -1, 64))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return predictionKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached prediction. Provider errors count as misses.
func (c *PredictionCache) Get(ctx context.Context, dataset string, features models.FeatureVector) (models.Prediction, bool) {
	key := PredictionKey(dataset, features)
	data, err := c.provider.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("prediction cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		metrics.ObserveCacheLookup(false)
		return models.Prediction{}, false
	}

	var pred models.Prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		c.logger.Warn("discarding corrupt cache entry", slog.String("key", key), slog.Any("error", err))
		_ = c.provider.Del(ctx, key)
		metrics.ObserveCacheLookup(false)
		return models.Prediction{}, false
	}
	metrics.ObserveCacheLookup(true)
	return pred, true
}

// Put stores pred for the TTL. Failures are logged only.
func (c *PredictionCache) Put(ctx context.Context, dataset string, features models.FeatureVector, pred models.Prediction) {
	key := PredictionKey(dataset, features)
	data, err := json.Marshal(pred)
	if err != nil {
		c.logger.Warn("encode prediction for cache", slog.Any("error", err))
		return
	}
	if err := c.provider.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("prediction cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Clear drops every cached prediction.
func (c *PredictionCache) Clear(ctx context.Context) (int, error) {
	return c.provider.DelPrefix(ctx, predictionKeyPrefix)
}
