package registry

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/water-ai/internal/models"
)

type fakeModel struct {
	value    float64
	proba    []float64
	err      error
	probaErr error
	rows     [][]float64
}

func (f *fakeModel) Predict(row []float64) (float64, error) {
	f.rows = append(f.rows, append([]float64(nil), row...))
	if f.err != nil {
		return 0, f.err
	}
	return f.value, nil
}

func (f *fakeModel) PredictProba(row []float64) ([]float64, error) {
	if f.probaErr != nil {
		return nil, f.probaErr
	}
	return f.proba, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func regressor(key string, model Model, features ...string) *Artifact {
	return &Artifact{Key: key, Version: "1", Kind: models.KindRegressor, Derivation: models.DerivationGeneric, Features: features, Model: model}
}

func TestSelect(t *testing.T) {
	reg := New(quietLogger(),
		regressor("dataset1", &fakeModel{}, "a", "b", "c", "d"),
		regressor("dataset2", &fakeModel{}, "ph", "Hardness", "Solids"),
	)

	tests := []struct {
		name     string
		features models.FeatureVector
		wantKey  string
		wantOK   bool
	}{
		{name: "full overlap", features: models.FeatureVector{"ph": 7, "Hardness": 200, "Solids": 20000}, wantKey: "dataset2", wantOK: true},
		{name: "two of three", features: models.FeatureVector{"ph": 7, "Solids": 1}, wantKey: "dataset2", wantOK: true},
		{name: "exactly half is rejected", features: models.FeatureVector{"a": 1, "b": 2}, wantOK: false},
		{name: "three of four", features: models.FeatureVector{"a": 1, "b": 2, "c": 3}, wantKey: "dataset1", wantOK: true},
		{name: "no overlap", features: models.FeatureVector{"zzz": 1}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, ok := reg.Select(tt.features)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantKey, sel.Key)
				assert.Greater(t, sel.Ratio, MinOverlapRatio)
			}
		})
	}
}

func TestSelectTieBreaksLexicographically(t *testing.T) {
	reg := New(quietLogger(),
		regressor("zeta", &fakeModel{}, "a", "b"),
		regressor("alpha", &fakeModel{}, "a", "b"),
	)
	sel, ok := reg.Select(models.FeatureVector{"a": 1, "b": 2})
	require.True(t, ok)
	assert.Equal(t, "alpha", sel.Key)
}

func TestSelectEmptyRegistry(t *testing.T) {
	_, ok := New(quietLogger()).Select(models.FeatureVector{"a": 1})
	assert.False(t, ok)
}

func TestPredictOrdersRowByArtifactFeatures(t *testing.T) {
	model := &fakeModel{value: 42}
	reg := New(quietLogger(), regressor("ds", model, "a", "b"))

	first, err := reg.Predict("ds", models.FeatureVector{"b": 2, "a": 1})
	require.NoError(t, err)
	second, err := reg.Predict("ds", models.FeatureVector{"a": 1, "b": 2})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, model.rows, 2)
	assert.Equal(t, []float64{1, 2}, model.rows[0])
	assert.Equal(t, model.rows[0], model.rows[1])
	assert.Equal(t, []string{"a", "b"}, first.FeaturesUsed)
}

func TestPredictFillsMissingFeaturesWithZero(t *testing.T) {
	model := &fakeModel{value: 1}
	reg := New(quietLogger(), regressor("ds", model, "a", "b", "c"))

	_, err := reg.Predict("ds", models.FeatureVector{"b": 5, "extra": 9})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 0}, model.rows[0])
}

func TestPredictUnknownModel(t *testing.T) {
	reg := New(quietLogger(), regressor("ds", &fakeModel{}, "a"))
	_, err := reg.Predict("missing", models.FeatureVector{"a": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)

	var notFound *ModelNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"ds"}, notFound.Available)
	assert.True(t, IsClientError(err))
}

func TestPredictClassifierConfidence(t *testing.T) {
	model := &fakeModel{value: 1, proba: []float64{0.2, 0.8}}
	reg := New(quietLogger(), &Artifact{Key: "dataset2", Kind: models.KindClassifier, Derivation: models.DerivationPotability, Features: []string{"ph"}, Model: model})

	pred, err := reg.Predict("dataset2", models.FeatureVector{"ph": 7})
	require.NoError(t, err)
	require.NotNil(t, pred.Confidence)
	assert.InDelta(t, 0.8, *pred.Confidence, 1e-9)
	assert.Equal(t, []float64{0.2, 0.8}, pred.Probabilities)
}

func TestPredictClassifierProbabilityFailureIsSwallowed(t *testing.T) {
	model := &fakeModel{value: 0, probaErr: errors.New("boom")}
	reg := New(quietLogger(), &Artifact{Key: "c", Kind: models.KindClassifier, Features: []string{"x"}, Model: model})

	pred, err := reg.Predict("c", models.FeatureVector{"x": 1})
	require.NoError(t, err)
	assert.Nil(t, pred.Confidence)
	assert.Nil(t, pred.Probabilities)
}

func TestPredictModelFailurePropagates(t *testing.T) {
	reg := New(quietLogger(), regressor("ds", &fakeModel{err: errors.New("bad chain")}, "a"))
	_, err := reg.Predict("ds", models.FeatureVector{"a": 1})
	require.Error(t, err)
	assert.False(t, IsClientError(err))
}

func TestEnsembleWeightsByConfidence(t *testing.T) {
	reg := New(quietLogger(),
		regressor("reg", &fakeModel{value: 100}, "a"),
		&Artifact{Key: "cls", Kind: models.KindClassifier, Features: []string{"a"}, Model: &fakeModel{value: 1, proba: []float64{0, 1}}},
		regressor("broken", &fakeModel{err: errors.New("nope")}, "a"),
	)

	result, err := reg.Ensemble(models.FeatureVector{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"cls", "reg"}, result.Models)
	require.Len(t, result.Weights, 2)
	assert.InDelta(t, 1.0/1.5, result.Weights[0], 1e-9)
	assert.InDelta(t, 0.5/1.5, result.Weights[1], 1e-9)
	assert.InDelta(t, 1*(1.0/1.5)+100*(0.5/1.5), result.Value, 1e-9)
	assert.Equal(t, "weighted_average", result.Method)
	assert.NotContains(t, result.Individual, "broken")
}

func TestEnsembleNoModels(t *testing.T) {
	reg := New(quietLogger(), regressor("broken", &fakeModel{err: errors.New("nope")}, "a"))
	_, err := reg.Ensemble(models.FeatureVector{"a": 1})
	assert.ErrorIs(t, err, ErrNoModelsAvailable)

	_, err = New(quietLogger()).Ensemble(models.FeatureVector{"a": 1})
	assert.ErrorIs(t, err, ErrNoModelsAvailable)
}

func TestNewKeepsGreatestVersion(t *testing.T) {
	older := regressor("ds", &fakeModel{value: 1}, "a")
	older.Version = "20240101"
	newer := regressor("ds", &fakeModel{value: 2}, "a")
	newer.Version = "20250101"

	reg := New(quietLogger(), newer, older)
	a, ok := reg.Artifact("ds")
	require.True(t, ok)
	assert.Equal(t, "20250101", a.Version)
	assert.Equal(t, 1, reg.Len())
}

func TestList(t *testing.T) {
	a := regressor("ds", &fakeModel{}, "a", "b")
	a.Target = "bod"
	a.Training = map[string]any{"r2": 0.9}
	infos := New(quietLogger(), a).List()

	require.Len(t, infos, 1)
	assert.Equal(t, "ds", infos[0].DatasetName)
	assert.Equal(t, "bod", infos[0].Target)
	assert.Equal(t, []string{"a", "b"}, infos[0].Features)
	assert.Equal(t, 0.9, infos[0].Metadata["r2"])
}

func TestHolderReloadSwapsRegistry(t *testing.T) {
	calls := 0
	holder := NewHolder(func() *Registry {
		calls++
		if calls == 1 {
			return New(quietLogger())
		}
		return New(quietLogger(), regressor("ds", &fakeModel{}, "a"))
	})

	before := holder.Current()
	assert.Equal(t, 0, before.Len())

	after := holder.Reload()
	assert.Equal(t, 1, after.Len())
	assert.Same(t, after, holder.Current())
	assert.Equal(t, 0, before.Len(), "previous registry must stay intact for in-flight readers")
}
