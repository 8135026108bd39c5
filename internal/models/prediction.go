package models

import "time"

// FeatureVector maps a feature name to its numeric value.
type FeatureVector map[string]float64

// ModelKind distinguishes regressors from classifiers.
type ModelKind string

const (
	KindRegressor  ModelKind = "regressor"
	KindClassifier ModelKind = "classifier"
)

// Derivation names the formula used to turn a raw prediction into scores.
type Derivation string

const (
	// DerivationPotability interprets a potability class plus classifier confidence.
	DerivationPotability Derivation = "potability"
	// DerivationEfficiency treats the prediction as a 0-100 treatment efficiency.
	DerivationEfficiency Derivation = "efficiency"
	// DerivationOxygenDemand bands a biological oxygen demand reading (mg/L).
	DerivationOxygenDemand Derivation = "oxygen_demand"
	// DerivationGeneric scales the prediction against a 200 unit reference.
	DerivationGeneric Derivation = "generic"
)

// Valid reports whether d is a known derivation.
func (d Derivation) Valid() bool {
	switch d {
	case DerivationPotability, DerivationEfficiency, DerivationOxygenDemand, DerivationGeneric:
		return true
	}
	return false
}

// AutoModel is the model name that requests automatic selection.
const AutoModel = "auto"

// Prediction is the outcome of a single-artifact prediction.
type Prediction struct {
	Value              float64    `json:"prediction"`
	ModelName          string     `json:"model_name"`
	Kind               ModelKind  `json:"model_type"`
	Derivation         Derivation `json:"derivation"`
	Probabilities      []float64  `json:"probabilities,omitempty"`
	Confidence         *float64   `json:"confidence,omitempty"`
	QualityScore       float64    `json:"quality_score"`
	ContaminationIndex float64    `json:"contamination_index"`
	FeaturesUsed       []string   `json:"features_used"`
}

// EnsemblePrediction is the confidence-weighted average over every usable artifact.
type EnsemblePrediction struct {
	Value              float64            `json:"prediction"`
	Individual         map[string]float64 `json:"individual_predictions"`
	Models             []string           `json:"models"`
	Weights            []float64          `json:"weights"`
	Method             string             `json:"method"`
	QualityScore       float64            `json:"quality_score"`
	ContaminationIndex float64            `json:"contamination_index"`
}

// PredictionRequest is the inbound prediction call.
type PredictionRequest struct {
	Features      FeatureVector `json:"features"`
	ModelName     string        `json:"model_name,omitempty"`
	UseEnsemble   bool          `json:"use_ensemble"`
	SensorData    FeatureVector `json:"sensor_data,omitempty"`
	TargetQuality TargetQuality `json:"target_quality,omitempty"`
}

// PredictionResponse bundles the prediction with the optimization it drives.
type PredictionResponse struct {
	PredictionID string              `json:"prediction_id,omitempty"`
	Mode         string              `json:"mode"`
	Prediction   *Prediction         `json:"prediction,omitempty"`
	Ensemble     *EnsemblePrediction `json:"ensemble,omitempty"`
	Optimization *OptimizationResult `json:"optimization,omitempty"`
}

// Scores returns the quality score and contamination index of whichever
// prediction the response carries.
func (r PredictionResponse) Scores() (float64, float64) {
	switch {
	case r.Prediction != nil:
		return r.Prediction.QualityScore, r.Prediction.ContaminationIndex
	case r.Ensemble != nil:
		return r.Ensemble.QualityScore, r.Ensemble.ContaminationIndex
	}
	return 50, 50
}

// PredictionRecord is the persisted form of a served prediction.
type PredictionRecord struct {
	ID                 string        `json:"id"`
	ModelName          string        `json:"model_name"`
	Input              FeatureVector `json:"input_data"`
	Result             any           `json:"predictions"`
	QualityScore       float64       `json:"quality_score"`
	ContaminationIndex float64       `json:"contamination_index"`
	Confidence         float64       `json:"confidence"`
	Timestamp          time.Time     `json:"timestamp"`
}

// ModelInfo describes a loaded artifact.
type ModelInfo struct {
	DatasetName string         `json:"dataset_name"`
	Version     string         `json:"version"`
	Kind        ModelKind      `json:"model_type"`
	Derivation  Derivation     `json:"derivation"`
	Features    []string       `json:"feature_columns"`
	Target      string         `json:"target_column"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ModelMetadataRecord is the persisted description of an artifact.
type ModelMetadataRecord struct {
	DatasetName string    `json:"dataset_name"`
	Version     string    `json:"model_version"`
	Kind        ModelKind `json:"model_type"`
	Features    []string  `json:"feature_columns"`
	Target      string    `json:"target_column"`
	Active      bool      `json:"is_active"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// ReloadSummary reports the outcome of a registry reload.
type ReloadSummary struct {
	Models              []string `json:"models"`
	Skipped             []string `json:"skipped,omitempty"`
	CacheEntriesCleared int      `json:"cache_entries_cleared"`
}
