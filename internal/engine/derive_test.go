package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/miradorstack/water-ai/internal/models"
)

func confidence(v float64) *float64 { return &v }

func TestDerivePotability(t *testing.T) {
	tests := []struct {
		name       string
		class      float64
		confidence *float64
		want       Scores
	}{
		{name: "potable high confidence", class: 1, confidence: confidence(0.8), want: Scores{Quality: 95, Contamination: 5}},
		{name: "potable mid confidence", class: 1, confidence: confidence(0.6), want: Scores{Quality: 85, Contamination: 15}},
		{name: "potable boundary 0.7 unchanged", class: 1, confidence: confidence(0.7), want: Scores{Quality: 85, Contamination: 15}},
		{name: "potable boundary 0.5 unchanged", class: 1, confidence: confidence(0.5), want: Scores{Quality: 85, Contamination: 15}},
		{name: "potable unknown confidence", class: 1, want: Scores{Quality: 85, Contamination: 15}},
		{name: "not potable low confidence", class: 0, confidence: confidence(0.3), want: Scores{Quality: 20, Contamination: 80}},
		{name: "not potable high confidence", class: 0, confidence: confidence(0.9), want: Scores{Quality: 40, Contamination: 60}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(models.Prediction{Value: tt.class, Derivation: models.DerivationPotability, Confidence: tt.confidence})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveOxygenDemandBands(t *testing.T) {
	cases := map[float64]float64{150: 90, 199.99: 90, 200: 70, 350: 70, 400: 50, 599: 50, 600: 30, 5000: 30}
	for bod, quality := range cases {
		got := Derive(models.Prediction{Value: bod, Derivation: models.DerivationOxygenDemand})
		assert.Equal(t, Scores{Quality: quality, Contamination: 100 - quality}, got, "bod=%v", bod)
	}
}

func TestDeriveEfficiency(t *testing.T) {
	assert.Equal(t, Scores{Quality: 100, Contamination: 0}, Derive(models.Prediction{Value: 120, Derivation: models.DerivationEfficiency}))
	assert.Equal(t, Scores{Quality: 0, Contamination: 100}, Derive(models.Prediction{Value: -5, Derivation: models.DerivationEfficiency}))
	assert.Equal(t, Scores{Quality: 73.46, Contamination: 26.54}, Derive(models.Prediction{Value: 73.456, Derivation: models.DerivationEfficiency}))
}

func TestDeriveGeneric(t *testing.T) {
	assert.Equal(t, Scores{Quality: 50, Contamination: 50}, Derive(models.Prediction{Value: 100, Derivation: models.DerivationGeneric}))
	assert.Equal(t, Scores{Quality: 100, Contamination: 0}, Derive(models.Prediction{Value: 900}))
	assert.Equal(t, Scores{Quality: 0, Contamination: 100}, Derive(models.Prediction{Value: -1}))
}

func TestDeriveEnsembleIgnoresMemberDerivations(t *testing.T) {
	assert.Equal(t, Scores{Quality: 25, Contamination: 75}, DeriveEnsemble(50))
}

func TestRegressorScoresSumToHundred(t *testing.T) {
	for _, derivation := range []models.Derivation{models.DerivationEfficiency, models.DerivationOxygenDemand, models.DerivationGeneric} {
		for _, v := range []float64{-10, 0, 1.005, 33.333, 66.667, 99.995, 150, 333.3, 1e6} {
			s := Derive(models.Prediction{Value: v, Derivation: derivation})
			assert.InDelta(t, 100, s.Quality+s.Contamination, 1e-9, "%s value=%v", derivation, v)
			assert.GreaterOrEqual(t, s.Quality, 0.0)
			assert.LessOrEqual(t, s.Quality, 100.0)
		}
	}
}

func TestApplyScores(t *testing.T) {
	pred := models.Prediction{Value: 350, Derivation: models.DerivationOxygenDemand}
	ApplyScores(&pred)
	assert.Equal(t, 70.0, pred.QualityScore)
	assert.Equal(t, 30.0, pred.ContaminationIndex)

	ensemble := models.EnsemblePrediction{Value: 150}
	ApplyEnsembleScores(&ensemble)
	assert.Equal(t, 75.0, ensemble.QualityScore)
	assert.Equal(t, 25.0, ensemble.ContaminationIndex)
}
