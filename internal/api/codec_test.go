package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/water-ai/internal/models"
)

func TestFromStructPredictionRequest(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{
		"features":       map[string]any{"ph": 7.1, "bod": 180.0},
		"model_name":     "auto",
		"use_ensemble":   true,
		"target_quality": "irrigation",
	})
	require.NoError(t, err)

	req, err := FromStructPredictionRequest(s)
	require.NoError(t, err)
	assert.Equal(t, models.FeatureVector{"ph": 7.1, "bod": 180}, req.Features)
	assert.Equal(t, models.AutoModel, req.ModelName)
	assert.True(t, req.UseEnsemble)
	assert.Equal(t, models.TargetIrrigation, req.TargetQuality)
}

func TestFromStructRejectsWrongTypes(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"features": map[string]any{"ph": "neutral"}})
	require.NoError(t, err)
	_, err = FromStructPredictionRequest(s)
	assert.Error(t, err)

	_, err = FromStructOptimizationRequest(nil)
	assert.Error(t, err)
}

func TestToStruct(t *testing.T) {
	s, err := ToStruct(models.ReuseDetermination{ReuseType: models.TargetIndustrial, RecoveryPercentage: 85})
	require.NoError(t, err)
	assert.Equal(t, "industrial", s.Fields["reuse_type"].GetStringValue())
	assert.Equal(t, 85.0, s.Fields["recovery_percentage"].GetNumberValue())

	_, err = ToStruct([]int{1})
	assert.Error(t, err)
}
