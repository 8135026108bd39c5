package engine

import (
	"math"

	"github.com/miradorstack/water-ai/internal/models"
)

const (
	// genericReference is the raw value that maps to a quality of 100.
	genericReference = 200.0
	// unknownConfidence is assumed when a classifier reports no probabilities.
	unknownConfidence = 0.5
)

// Scores is a quality score and contamination index pair, each in [0,100].
type Scores struct {
	Quality       float64
	Contamination float64
}

// Derive maps a raw prediction onto quality and contamination scores using the
// formula the artifact declared.
func Derive(pred models.Prediction) Scores {
	var s Scores
	switch pred.Derivation {
	case models.DerivationPotability:
		confidence := unknownConfidence
		if pred.Confidence != nil {
			confidence = *pred.Confidence
		}
		s = potability(pred.Value, confidence)
	case models.DerivationEfficiency:
		s = complement(clamp(pred.Value, 0, 100))
	case models.DerivationOxygenDemand:
		s = complement(oxygenDemandBand(pred.Value))
	default:
		s = generic(pred.Value)
	}
	return Scores{Quality: round2(s.Quality), Contamination: round2(s.Contamination)}
}

// DeriveEnsemble scores an ensemble prediction with the generic formula.
func DeriveEnsemble(value float64) Scores {
	s := generic(value)
	return Scores{Quality: round2(s.Quality), Contamination: round2(s.Contamination)}
}

// ApplyScores derives and stores scores on a prediction.
func ApplyScores(pred *models.Prediction) {
	s := Derive(*pred)
	pred.QualityScore = s.Quality
	pred.ContaminationIndex = s.Contamination
}

// ApplyEnsembleScores derives and stores scores on an ensemble prediction.
func ApplyEnsembleScores(pred *models.EnsemblePrediction) {
	s := DeriveEnsemble(pred.Value)
	pred.QualityScore = s.Quality
	pred.ContaminationIndex = s.Contamination
}

func potability(class, confidence float64) Scores {
	s := Scores{Quality: 30, Contamination: 70}
	if math.Round(class) == 1 {
		s = Scores{Quality: 85, Contamination: 15}
	}
	switch {
	case confidence > 0.7:
		s.Quality = math.Min(100, s.Quality+10)
		s.Contamination = math.Max(0, s.Contamination-10)
	case confidence < 0.5:
		s.Quality = math.Max(0, s.Quality-10)
		s.Contamination = math.Min(100, s.Contamination+10)
	}
	return s
}

func oxygenDemandBand(bod float64) float64 {
	switch {
	case bod < 200:
		return 90
	case bod < 400:
		return 70
	case bod < 600:
		return 50
	}
	return 30
}

func generic(value float64) Scores {
	return complement(clamp(value/genericReference*100, 0, 100))
}

// complement rounds quality first so both sides always sum to 100.
func complement(quality float64) Scores {
	q := round2(quality)
	return Scores{Quality: q, Contamination: round2(100 - q)}
}

func clamp(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
