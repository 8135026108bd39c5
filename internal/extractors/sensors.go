package extractors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/miradorstack/water-ai/internal/models"
)

const (
	// DefaultZThreshold is the absolute z-score that raises a twin alert.
	DefaultZThreshold = 2.5
	// minAlertSamples is the history a parameter needs before it can alert.
	minAlertSamples = 5
	minStdDev       = 0.01
)

// SensorExtractor derives digital-twin state from recent sensor readings.
type SensorExtractor struct {
	threshold float64
}

// NewSensorExtractor creates a detector. A non-positive threshold uses DefaultZThreshold.
func NewSensorExtractor(threshold float64) *SensorExtractor {
	if threshold <= 0 {
		threshold = DefaultZThreshold
	}
	return &SensorExtractor{threshold: threshold}
}

// ParameterKey names the parameter a reading measures, falling back to its sensor type.
func ParameterKey(r models.SensorReading) string {
	if r.ParameterName != "" {
		return r.ParameterName
	}
	return r.SensorType
}

// LatestByParameter keeps the newest reading of each parameter.
func LatestByParameter(readings []models.SensorReading) map[string]models.ParameterStatus {
	status := make(map[string]models.ParameterStatus)
	for _, r := range readings {
		key := ParameterKey(r)
		if key == "" {
			continue
		}
		if current, ok := status[key]; ok && !r.Timestamp.After(current.Timestamp) {
			continue
		}
		status[key] = models.ParameterStatus{CurrentValue: r.Value, Unit: r.Unit, Timestamp: r.Timestamp}
	}
	return status
}

// Detect scores the newest reading of every parameter against that
// parameter's recent history and returns those beyond the threshold,
// strongest first.
func (e *SensorExtractor) Detect(readings []models.SensorReading) []models.TwinAlert {
	if len(readings) == 0 {
		return nil
	}

	grouped := make(map[string][]models.SensorReading)
	for _, r := range readings {
		if key := ParameterKey(r); key != "" {
			grouped[key] = append(grouped[key], r)
		}
	}

	alerts := make([]models.TwinAlert, 0)
	for param, series := range grouped {
		if len(series) < minAlertSamples {
			continue
		}
		values := make([]float64, len(series))
		latest := series[0]
		for i, r := range series {
			values[i] = r.Value
			if r.Timestamp.After(latest.Timestamp) {
				latest = r
			}
		}

		mean, std := stat.PopMeanStdDev(values, nil)
		if std < minStdDev {
			std = minStdDev
		}
		score := stat.StdScore(latest.Value, mean, std)
		if math.Abs(score) < e.threshold {
			continue
		}
		alerts = append(alerts, models.TwinAlert{
			Parameter: param,
			Value:     latest.Value,
			Score:     math.Round(score*100) / 100,
			Threshold: e.threshold,
			Timestamp: latest.Timestamp,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		si, sj := math.Abs(alerts[i].Score), math.Abs(alerts[j].Score)
		if si != sj {
			return si > sj
		}
		return alerts[i].Parameter < alerts[j].Parameter
	})
	return alerts
}
