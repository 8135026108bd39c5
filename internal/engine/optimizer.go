package engine

import (
	"fmt"
	"math"

	"github.com/miradorstack/water-ai/internal/models"
)

// Sensor defaults used when live readings are absent.
const (
	DefaultFlowRateLPM = 1000.0
	DefaultBOD         = 200.0
	DefaultCOD         = 400.0
)

const furtherTreatmentDescription = "Requires further treatment before reuse"

// Primary computes clarifier setpoints from the contamination index and flow rate.
func Primary(contamination, flowRateLPM float64) models.PrimaryTreatment {
	c := contamination / 100
	settling := clamp(60*(1+c*2), 30, 180)
	coagulant := clamp(50*(1+c*1.5)*flowRateLPM/1000, 20, 200)
	svi := clamp(80+c*50, 50, 200)

	return models.PrimaryTreatment{
		SettlingTimeMin:   round2(settling),
		CoagulantDoseML:   round2(coagulant),
		SludgeVolumeIndex: round2(svi),
		Recommendations: []string{
			fmt.Sprintf("Maintain settling time of %.0f minutes", settling),
			fmt.Sprintf("Apply coagulant dose of %.1f mL", coagulant),
			fmt.Sprintf("Monitor SVI - target: %.0f mL/g", svi),
		},
	}
}

// Secondary computes biological treatment setpoints. bod and cod are mg/L.
func Secondary(contamination, bod, cod float64) models.SecondaryTreatment {
	c := contamination / 100
	load := math.Max(0, bod-30)/200 + math.Max(0, cod-100)/400
	aeration := clamp(240*(1+load), 180, 480)
	do := clamp(2.5+c, 2, 4)
	blower := clamp(1000*(1+c*0.5), 800, 1500)
	sludgeAge := clamp(8+c*5, 5, 15)

	return models.SecondaryTreatment{
		AerationTimeMin: round2(aeration),
		DOTargetPPM:     round2(do),
		BlowerSpeedRPM:  math.Round(blower),
		SludgeAgeDays:   round2(sludgeAge),
		Recommendations: []string{
			fmt.Sprintf("Aerate for %.0f minutes", aeration),
			fmt.Sprintf("Maintain DO at %.2f mg/L", do),
			fmt.Sprintf("Set blower speed to %.0f RPM", blower),
			fmt.Sprintf("Target sludge age: %.1f days", sludgeAge),
		},
	}
}

// Tertiary computes polishing setpoints and whether reverse osmosis is needed.
func Tertiary(quality, contamination float64, target models.TargetQuality) models.TertiaryTreatment {
	filtration := clamp(10*(1-0.3*(100-quality)/100), 5, 15)
	chlorine := clamp(2*(1+contamination/100), 1, 5)
	ro := target == models.TargetDrinking || contamination > 70 || quality < 50

	roNote := "RO not required"
	if ro {
		roNote = "RO required"
	}
	return models.TertiaryTreatment{
		FiltrationRateLPM: round2(filtration),
		ChlorineDoseML:    round2(chlorine),
		ROTrigger:         ro,
		Recommendations: []string{
			fmt.Sprintf("Set filtration rate to %.1f LPM/m²", filtration),
			fmt.Sprintf("Apply chlorine dose of %.2f mg/L", chlorine),
			roNote,
		},
	}
}

// FinalReuse picks the first reuse tier the scores qualify for.
func FinalReuse(quality, contamination float64, roUsed bool) models.ReuseDetermination {
	r := models.ReuseDetermination{
		QualityScore:       round2(quality),
		ContaminationIndex: round2(contamination),
	}
	switch {
	case roUsed && quality >= 95:
		r.ReuseType, r.RecoveryPercentage = models.TargetDrinking, 75
		r.Description = "Suitable for drinking water after RO treatment"
	case quality >= 85 && contamination < 20:
		r.ReuseType, r.RecoveryPercentage = models.TargetIndustrial, 90
		r.Description = "Suitable for industrial reuse (cooling, process water)"
	case quality >= 70 && contamination < 40:
		r.ReuseType, r.RecoveryPercentage = models.TargetIrrigation, 85
		r.Description = "Suitable for agricultural irrigation"
	case quality >= 60 && contamination < 60:
		r.ReuseType, r.RecoveryPercentage = models.TargetEnvironmental, 95
		r.Description = "Suitable for environmental discharge"
	default:
		r.ReuseType, r.RecoveryPercentage = models.TargetEnvironmental, 90
		r.Description = furtherTreatmentDescription
		r.NeedsTreatment = true
	}
	return r
}

// OptimizeAll runs every stage in order and assembles the combined result.
// It is a pure function of its input.
func OptimizeAll(req models.OptimizationRequest) models.OptimizationResult {
	target := req.TargetQuality
	if target == "" {
		target = models.TargetEnvironmental
	}
	flow := sensorValue(req.SensorData, models.SensorFlowRate, DefaultFlowRateLPM)
	bod := sensorValue(req.SensorData, models.SensorBOD, DefaultBOD)
	cod := sensorValue(req.SensorData, models.SensorCOD, DefaultCOD)

	q, c := req.QualityScore, req.ContaminationIndex
	primary := Primary(c, flow)
	secondary := Secondary(c, bod, cod)
	tertiary := Tertiary(q, c, target)
	reuse := FinalReuse(q, c, tertiary.ROTrigger)

	steps := make([]string, 0, len(primary.Recommendations)+len(secondary.Recommendations)+len(tertiary.Recommendations))
	steps = append(steps, primary.Recommendations...)
	steps = append(steps, secondary.Recommendations...)
	steps = append(steps, tertiary.Recommendations...)

	return models.OptimizationResult{
		QualityScore:       round2(q),
		ContaminationIndex: round2(c),
		Primary:            primary,
		Secondary:          secondary,
		Tertiary:           tertiary,
		FinalReuse:         reuse,
		Dosing: models.Dosing{
			Coagulant: primary.CoagulantDoseML,
			Chlorine:  tertiary.ChlorineDoseML,
		},
		ProcessSteps:        steps,
		ExpectedRecoveryPct: reuse.RecoveryPercentage,
	}
}

// Optimizer wraps OptimizeAll with rule-pack advisories.
type Optimizer struct {
	rules *RuleEngine
}

// NewOptimizer returns an optimizer. rules may be nil.
func NewOptimizer(rules *RuleEngine) *Optimizer {
	return &Optimizer{rules: rules}
}

// Optimize runs OptimizeAll and appends matching advisories.
func (o *Optimizer) Optimize(req models.OptimizationRequest) models.OptimizationResult {
	result := OptimizeAll(req)
	if o != nil {
		result.Advisories = o.rules.Advise(result)
	}
	return result
}

func sensorValue(data models.FeatureVector, key string, fallback float64) float64 {
	if v, ok := data[key]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return fallback
}
