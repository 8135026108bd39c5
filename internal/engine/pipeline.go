package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/miradorstack/water-ai/internal/metrics"
	"github.com/miradorstack/water-ai/internal/models"
	"github.com/miradorstack/water-ai/internal/registry"
)

const (
	modeSingle   = "single"
	modeEnsemble = "ensemble"
)

// Pipeline orchestrates model selection, inference, scoring and optimization.
type Pipeline struct {
	logger    *slog.Logger
	holder    *registry.Holder
	cache     *PredictionCache
	optimizer *Optimizer
}

// NewPipeline constructs a prediction pipeline over the registry published by holder.
func NewPipeline(logger *slog.Logger, holder *registry.Holder, predictionCache *PredictionCache, optimizer *Optimizer) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if predictionCache == nil {
		predictionCache = NewPredictionCache(nil, DefaultPredictionTTL, logger)
	}
	if optimizer == nil {
		optimizer = NewOptimizer(nil)
	}
	metrics.SetRegistrySize(holder.Current().Len())
	return &Pipeline{
		logger:    logger,
		holder:    holder,
		cache:     predictionCache,
		optimizer: optimizer,
	}
}

// Registry returns the currently published registry.
func (p *Pipeline) Registry() *registry.Registry {
	return p.holder.Current()
}

// ValidateFeatures rejects empty vectors and non-finite values.
func ValidateFeatures(features models.FeatureVector) error {
	if len(features) == 0 {
		return registry.ErrEmptyFeatureVector
	}
	names := make([]string, 0)
	for name, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		sort.Strings(names)
		return fmt.Errorf("%w: %v", registry.ErrInvalidFeatureValue, names)
	}
	return nil
}

// Predict serves a single-model prediction. An empty model name or "auto"
// selects the artifact with the best feature overlap.
func (p *Pipeline) Predict(ctx context.Context, features models.FeatureVector, modelName string) (pred models.Prediction, err error) {
	start := time.Now()
	defer func() { p.observe(modeSingle, start, err) }()

	if err := ValidateFeatures(features); err != nil {
		return models.Prediction{}, err
	}

	reg := p.holder.Current()
	key := modelName
	if key == "" || key == models.AutoModel {
		selection, ok := reg.Select(features)
		if !ok {
			return models.Prediction{}, &registry.NoSuitableModelError{Available: reg.Keys()}
		}
		key = selection.Key
	}

	if cached, ok := p.cache.Get(ctx, key, features); ok {
		p.logger.Debug("prediction served from cache", slog.String("dataset", key))
		return cached, nil
	}

	pred, err = reg.Predict(key, features)
	if err != nil {
		return models.Prediction{}, err
	}
	ApplyScores(&pred)
	p.cache.Put(ctx, key, features, pred)
	return pred, nil
}

// Ensemble serves a confidence-weighted prediction across every artifact.
func (p *Pipeline) Ensemble(_ context.Context, features models.FeatureVector) (pred models.EnsemblePrediction, err error) {
	start := time.Now()
	defer func() { p.observe(modeEnsemble, start, err) }()

	if err := ValidateFeatures(features); err != nil {
		return models.EnsemblePrediction{}, err
	}
	pred, err = p.holder.Current().Ensemble(features)
	if err != nil {
		return models.EnsemblePrediction{}, err
	}
	ApplyEnsembleScores(&pred)
	return pred, nil
}

// Optimize computes treatment setpoints for the supplied scores.
func (p *Pipeline) Optimize(req models.OptimizationRequest) models.OptimizationResult {
	result := p.optimizer.Optimize(req)
	metrics.ObserveOptimization(string(result.FinalReuse.ReuseType))
	return result
}

// Reload rebuilds the registry, publishes it and clears cached predictions.
// It returns the new registry and the number of cache entries dropped.
func (p *Pipeline) Reload(ctx context.Context) (*registry.Registry, int) {
	reg := p.holder.Reload()
	cleared, err := p.cache.Clear(ctx)
	if err != nil {
		p.logger.Warn("clear prediction cache after reload", slog.Any("error", err))
	}
	metrics.ObserveReload()
	metrics.SetRegistrySize(reg.Len())
	p.logger.Info("model registry reloaded",
		slog.Int("models", reg.Len()),
		slog.Int("skipped", len(reg.LoadErrors())),
		slog.Int("cache_entries_cleared", cleared))
	return reg, cleared
}

func (p *Pipeline) observe(mode string, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case registry.IsClientError(err):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
		p.logger.Error("prediction failed", slog.String("mode", mode), slog.Any("error", err))
	}
	metrics.ObservePrediction(mode, time.Since(start), outcome)
}
