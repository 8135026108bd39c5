package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/water-ai/internal/models"
)

func TestRuleEngineAdvise(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - id: ro
    match:
      ro_required: true
      min_contamination: 70
    advisories: ["Check RO membrane fouling", "Schedule CIP cycle"]
  - id: further
    match:
      needs_treatment: true
    advisories: ["Schedule CIP cycle", "Recirculate effluent to equalisation tank"]
  - id: industrial
    match:
      reuse_type: industrial
    advisories: ["Notify cooling tower operator"]
`), 0o644))

	engine, err := NewRuleEngine(path, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	require.NoError(t, err)
	require.Equal(t, 3, engine.Len())

	result := OptimizeAll(models.OptimizationRequest{QualityScore: 40, ContaminationIndex: 75, TargetQuality: models.TargetDrinking})
	assert.Equal(t, []string{
		"Check RO membrane fouling",
		"Schedule CIP cycle",
		"Recirculate effluent to equalisation tank",
	}, engine.Advise(result))

	clean := OptimizeAll(models.OptimizationRequest{QualityScore: 90, ContaminationIndex: 10})
	assert.Equal(t, []string{"Notify cooling tower operator"}, engine.Advise(clean))
}

func TestRuleEngineNoFile(t *testing.T) {
	engine, err := NewRuleEngine("non-existent", nil)
	require.NoError(t, err)
	assert.Nil(t, engine)
	assert.Nil(t, engine.Advise(models.OptimizationResult{}))
	assert.Zero(t, engine.Len())
}

func TestRuleEngineInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: [\n"), 0o644))
	_, err := NewRuleEngine(path, nil)
	assert.Error(t, err)
}

func TestOptimizerAttachesAdvisories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - id: any-ro
    match:
      ro_required: true
    advisories: ["Verify RO permeate conductivity"]
`), 0o644))
	rules, err := NewRuleEngine(path, nil)
	require.NoError(t, err)

	result := NewOptimizer(rules).Optimize(models.OptimizationRequest{QualityScore: 40, ContaminationIndex: 75})
	assert.Equal(t, []string{"Verify RO permeate conductivity"}, result.Advisories)

	bare := NewOptimizer(nil).Optimize(models.OptimizationRequest{QualityScore: 40, ContaminationIndex: 75})
	assert.Nil(t, bare.Advisories)
}
