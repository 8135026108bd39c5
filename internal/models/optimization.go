package models

// TargetQuality is the reuse tier the plant is aiming for.
type TargetQuality string

const (
	TargetEnvironmental TargetQuality = "environmental"
	TargetIndustrial    TargetQuality = "industrial"
	TargetIrrigation    TargetQuality = "irrigation"
	TargetDrinking      TargetQuality = "drinking"
)

// Valid reports whether t is one of the known tiers.
func (t TargetQuality) Valid() bool {
	switch t {
	case TargetEnvironmental, TargetIndustrial, TargetIrrigation, TargetDrinking:
		return true
	}
	return false
}

// Sensor data keys recognised by the optimizer.
const (
	SensorFlowRate = "flow_rate_lpm"
	SensorBOD      = "bod"
	SensorCOD      = "cod"
)

// OptimizationRequest carries the scores and live readings for a plant.
type OptimizationRequest struct {
	QualityScore       float64       `json:"quality_score"`
	ContaminationIndex float64       `json:"contamination_index"`
	SensorData         FeatureVector `json:"sensor_data,omitempty"`
	TargetQuality      TargetQuality `json:"target_quality,omitempty"`
}

// PrimaryTreatment holds clarifier setpoints.
type PrimaryTreatment struct {
	SettlingTimeMin   float64  `json:"settling_time_min"`
	CoagulantDoseML   float64  `json:"coagulant_dose_ml"`
	SludgeVolumeIndex float64  `json:"sludge_volume_index"`
	Recommendations   []string `json:"recommendations"`
}

// SecondaryTreatment holds biological treatment setpoints.
type SecondaryTreatment struct {
	AerationTimeMin float64  `json:"aeration_time_min"`
	DOTargetPPM     float64  `json:"do_target_ppm"`
	BlowerSpeedRPM  float64  `json:"blower_speed_rpm"`
	SludgeAgeDays   float64  `json:"sludge_age_days"`
	Recommendations []string `json:"recommendations"`
}

// TertiaryTreatment holds polishing setpoints.
type TertiaryTreatment struct {
	FiltrationRateLPM float64  `json:"filtration_rate_lpm"`
	ChlorineDoseML    float64  `json:"chlorine_dose_ml"`
	ROTrigger         bool     `json:"ro_trigger"`
	Recommendations   []string `json:"recommendations"`
}

// ReuseDetermination is the final reuse suitability decision.
type ReuseDetermination struct {
	ReuseType          TargetQuality `json:"reuse_type"`
	RecoveryPercentage float64       `json:"recovery_percentage"`
	Description        string        `json:"description"`
	NeedsTreatment     bool          `json:"requires_further_treatment"`
	QualityScore       float64       `json:"quality_score"`
	ContaminationIndex float64       `json:"contamination_index"`
}

// Dosing summarises chemical dosing across stages.
type Dosing struct {
	Coagulant float64 `json:"coagulant"`
	Chlorine  float64 `json:"chlorine"`
}

// OptimizationResult combines every stage.
type OptimizationResult struct {
	QualityScore        float64            `json:"quality_score"`
	ContaminationIndex  float64            `json:"contamination_index"`
	Primary             PrimaryTreatment   `json:"primary_treatment"`
	Secondary           SecondaryTreatment `json:"secondary_treatment"`
	Tertiary            TertiaryTreatment  `json:"tertiary_treatment"`
	FinalReuse          ReuseDetermination `json:"final_reuse"`
	Dosing              Dosing             `json:"dosing_ml"`
	ProcessSteps        []string           `json:"recommended_process_steps"`
	Advisories          []string           `json:"advisories,omitempty"`
	ExpectedRecoveryPct float64            `json:"expected_recovery_percentage"`
}
