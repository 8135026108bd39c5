package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeRejected labels requests refused for caller-side reasons.
	OutcomeRejected = "rejected"
	// OutcomeError labels failed operations (model or dependency issues).
	OutcomeError = "error"
)

const namespace = "water_ai"

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of predictions handled, partitioned by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	predictionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_seconds",
			Help:      "Prediction latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
		[]string{"mode"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_lookups_total",
			Help:      "Prediction cache lookups, partitioned by hit or miss.",
		},
		[]string{"result"},
	)

	optimizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizations_total",
			Help:      "Treatment optimizations computed, partitioned by final reuse type.",
		},
		[]string{"reuse_type"},
	)

	readingsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_readings_ingested_total",
			Help:      "Sensor readings ingested, partitioned by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	registryModels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_models",
			Help:      "Number of model artifacts currently loaded.",
		},
	)

	registryReloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_reloads_total",
			Help:      "Number of completed model registry reloads.",
		},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "HTTP requests rejected by the per-client rate limiter.",
		},
	)
)

// Register attaches water-ai collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		cacheLookupsTotal,
		optimizationsTotal,
		readingsIngestedTotal,
		registryModels,
		registryReloadsTotal,
		rateLimitedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records a prediction duration and outcome label.
func ObservePrediction(mode string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError && label != OutcomeRejected {
		label = OutcomeSuccess
	}
	predictionsTotal.WithLabelValues(mode, label).Inc()
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a prediction cache hit or miss.
func ObserveCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// ObserveOptimization counts an optimization by its reuse decision.
func ObserveOptimization(reuseType string) {
	optimizationsTotal.WithLabelValues(reuseType).Inc()
}

// ObserveIngest counts a sensor reading received from source.
func ObserveIngest(source string, ok bool) {
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeError
	}
	readingsIngestedTotal.WithLabelValues(source, outcome).Inc()
}

// SetRegistrySize records how many artifacts are loaded.
func SetRegistrySize(n int) {
	registryModels.Set(float64(n))
}

// ObserveReload counts a registry reload.
func ObserveReload() {
	registryReloadsTotal.Inc()
}

// ObserveRateLimited counts a request rejected by the rate limiter.
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}
