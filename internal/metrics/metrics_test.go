package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObservePredictionNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(predictionsTotal.WithLabelValues("single", OutcomeSuccess))
	ObservePrediction("single", 2*time.Millisecond, "anything")
	ObservePrediction("single", -time.Second, OutcomeSuccess)
	after := testutil.ToFloat64(predictionsTotal.WithLabelValues("single", OutcomeSuccess))
	assert.Equal(t, before+2, after)
}

func TestCacheAndRegistryCollectors(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	ObserveCacheLookup(true)
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")))

	SetRegistrySize(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(registryModels))

	failed := testutil.ToFloat64(readingsIngestedTotal.WithLabelValues("kafka", OutcomeError))
	ObserveIngest("kafka", false)
	assert.Equal(t, failed+1, testutil.ToFloat64(readingsIngestedTotal.WithLabelValues("kafka", OutcomeError)))
}
