package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/water-ai/internal/engine"
	"github.com/miradorstack/water-ai/internal/models"
)

func fixedGenerator() *Generator {
	g := NewGenerator("")
	g.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	return g
}

func TestRenderFullReport(t *testing.T) {
	opt := engine.OptimizeAll(models.OptimizationRequest{
		QualityScore:       72,
		ContaminationIndex: 28,
		SensorData:         models.FeatureVector{models.SensorBOD: 240},
		TargetQuality:      models.TargetIrrigation,
	})
	pred := &models.PredictionRecord{
		ID:                 "pred-1",
		ModelName:          "dataset2",
		QualityScore:       72,
		ContaminationIndex: 28,
		Confidence:         0.83,
		Timestamp:          time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	readings := make([]models.SensorReading, 0, 60)
	for i := 0; i < 60; i++ {
		readings = append(readings, models.SensorReading{
			SensorID:      "turb-1",
			SensorType:    "turbidity",
			ParameterName: "turbidity",
			Value:         float64(i) / 3,
			Unit:          "NTU",
			Timestamp:     time.Date(2025, 6, 1, 8, i, 0, 0, time.UTC),
		})
	}

	data, err := fixedGenerator().Render(Input{Prediction: pred, Optimization: &opt, Readings: readings})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 1000)
}

func TestRenderWithoutSections(t *testing.T) {
	data, err := fixedGenerator().Render(Input{SensorData: models.FeatureVector{"ph": 7.2, "bod": 180}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	empty, err := fixedGenerator().Render(Input{})
	require.NoError(t, err)
	assert.NotEmpty(t, empty)
}

func TestFileName(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 5, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, "report_20250601_040005.pdf", FileName(at))
}
