// Package registry owns the trained artifacts loaded at startup and serves
// model selection, single-model prediction and ensemble prediction.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/water-ai/internal/models"
)

const (
	// MissingFeatureDefault is substituted for features absent from a request.
	MissingFeatureDefault = 0.0
	// MinOverlapRatio is the exclusive lower bound for auto-selection.
	MinOverlapRatio = 0.5
	// DefaultEnsembleWeight applies to artifacts that report no confidence.
	DefaultEnsembleWeight = 0.5
)

// Artifact is a trained model plus the metadata it was persisted with.
type Artifact struct {
	Key        string
	Version    string
	Kind       models.ModelKind
	Derivation models.Derivation
	Features   []string
	Target     string
	Training   map[string]any
	Model      Model
}

// Selection is the outcome of auto-selection.
type Selection struct {
	Key   string
	Ratio float64
}

// Registry is an immutable index of artifacts by dataset key.
type Registry struct {
	logger     *slog.Logger
	artifacts  map[string]*Artifact
	keys       []string
	loadErrors []error
}

// New indexes the supplied artifacts. When a key repeats, the greatest version wins.
func New(logger *slog.Logger, artifacts ...*Artifact) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: logger, artifacts: make(map[string]*Artifact, len(artifacts))}
	for _, a := range artifacts {
		if a == nil || a.Model == nil {
			continue
		}
		if existing, ok := r.artifacts[a.Key]; ok && existing.Version >= a.Version {
			continue
		}
		r.artifacts[a.Key] = a
	}
	r.keys = make([]string, 0, len(r.artifacts))
	for key := range r.artifacts {
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)
	return r
}

// Len returns the number of loaded artifacts.
func (r *Registry) Len() int { return len(r.keys) }

// Keys returns the dataset keys in lexicographic order.
func (r *Registry) Keys() []string { return append([]string(nil), r.keys...) }

// LoadErrors returns the artifacts skipped while loading.
func (r *Registry) LoadErrors() []error { return append([]error(nil), r.loadErrors...) }

// Artifact looks up an artifact by dataset key.
func (r *Registry) Artifact(key string) (*Artifact, bool) {
	a, ok := r.artifacts[key]
	return a, ok
}

// Select picks the artifact whose feature list is best covered by the request.
// Ties go to the lexicographically smallest key. ok is false when the best
// ratio does not exceed MinOverlapRatio.
func (r *Registry) Select(features models.FeatureVector) (Selection, bool) {
	var best Selection
	found := false
	for _, key := range r.keys {
		a := r.artifacts[key]
		if len(a.Features) == 0 {
			continue
		}
		overlap := 0
		for _, name := range a.Features {
			if _, ok := features[name]; ok {
				overlap++
			}
		}
		ratio := float64(overlap) / float64(len(a.Features))
		if !found || ratio > best.Ratio {
			best = Selection{Key: key, Ratio: ratio}
			found = true
		}
	}

	if !found || best.Ratio <= MinOverlapRatio {
		r.logger.Warn("no suitable model found with sufficient feature overlap", slog.Float64("best_ratio", best.Ratio))
		return Selection{}, false
	}
	r.logger.Info("selected model", slog.String("dataset", best.Key), slog.Float64("overlap", best.Ratio))
	return best, true
}

// Predict runs one artifact against the request. Missing features are filled
// with MissingFeatureDefault. Scores are left for the derivation layer.
func (r *Registry) Predict(key string, features models.FeatureVector) (models.Prediction, error) {
	a, ok := r.artifacts[key]
	if !ok {
		return models.Prediction{}, &ModelNotFoundError{Key: key, Available: r.Keys()}
	}

	row := make([]float64, len(a.Features))
	var missing []string
	for i, name := range a.Features {
		v, ok := features[name]
		if !ok {
			v = MissingFeatureDefault
			missing = append(missing, name)
		}
		row[i] = v
	}
	if len(missing) > 0 {
		r.logger.Warn("missing features filled with defaults",
			slog.String("dataset", key),
			slog.Any("features", missing),
			slog.Float64("default", MissingFeatureDefault))
	}

	value, err := a.Model.Predict(row)
	if err != nil {
		return models.Prediction{}, fmt.Errorf("predict %s: %w", key, err)
	}

	result := models.Prediction{
		Value:        value,
		ModelName:    key,
		Kind:         a.Kind,
		Derivation:   a.Derivation,
		FeaturesUsed: append([]string(nil), a.Features...),
	}
	if a.Kind == models.KindClassifier {
		proba, err := a.Model.PredictProba(row)
		if err != nil || len(proba) == 0 {
			r.logger.Debug("class probabilities unavailable", slog.String("dataset", key), slog.Any("error", err))
		} else {
			confidence := floats.Max(proba)
			result.Probabilities = proba
			result.Confidence = &confidence
		}
	}
	return result, nil
}

// Ensemble averages every artifact that predicts successfully, weighting each
// by its confidence (DefaultEnsembleWeight when absent).
func (r *Registry) Ensemble(features models.FeatureVector) (models.EnsemblePrediction, error) {
	var (
		names   []string
		values  []float64
		weights []float64
	)
	for _, key := range r.keys {
		pred, err := r.Predict(key, features)
		if err != nil {
			r.logger.Warn("ensemble member failed", slog.String("dataset", key), slog.Any("error", err))
			continue
		}
		weight := DefaultEnsembleWeight
		if pred.Confidence != nil {
			weight = *pred.Confidence
		}
		names = append(names, key)
		values = append(values, pred.Value)
		weights = append(weights, weight)
	}
	if len(values) == 0 {
		return models.EnsemblePrediction{}, ErrNoModelsAvailable
	}

	total := floats.Sum(weights)
	if total <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(weights))
	}
	floats.Scale(1/total, weights)

	individual := make(map[string]float64, len(names))
	for i, name := range names {
		individual[name] = values[i]
	}
	return models.EnsemblePrediction{
		Value:      stat.Mean(values, weights),
		Individual: individual,
		Models:     names,
		Weights:    weights,
		Method:     "weighted_average",
	}, nil
}

// List describes every loaded artifact.
func (r *Registry) List() []models.ModelInfo {
	infos := make([]models.ModelInfo, 0, len(r.keys))
	for _, key := range r.keys {
		a := r.artifacts[key]
		infos = append(infos, models.ModelInfo{
			DatasetName: a.Key,
			Version:     a.Version,
			Kind:        a.Kind,
			Derivation:  a.Derivation,
			Features:    append([]string(nil), a.Features...),
			Target:      a.Target,
			Metadata:    a.Training,
		})
	}
	return infos
}

// IsClientError reports whether err is an expected outcome the caller caused.
func IsClientError(err error) bool {
	return errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrNoSuitableModel) ||
		errors.Is(err, ErrNoModelsAvailable) ||
		errors.Is(err, ErrEmptyFeatureVector) ||
		errors.Is(err, ErrInvalidFeatureValue)
}
