package utils

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LatencyTracker keeps the most recent duration samples in a ring and computes percentiles.
type LatencyTracker struct {
	mu      sync.RWMutex
	samples []float64
	next    int
	full    bool
}

// LatencySummary is a point-in-time view of the tracked latencies.
type LatencySummary struct {
	Samples int           `json:"samples"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
}

// NewLatencyTracker creates a tracker storing up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{samples: make([]float64, maxSize)}
}

// Observe records a new duration, overwriting the oldest once full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = float64(d)
	l.next++
	if l.next == len(l.samples) {
		l.next = 0
		l.full = true
	}
}

// Percentile returns the empirical percentile (0-100). Returns zero if no samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	sorted := l.sorted()
	return quantile(sorted, p)
}

// Summary reports the sample count and common percentiles.
func (l *LatencyTracker) Summary() LatencySummary {
	sorted := l.sorted()
	return LatencySummary{
		Samples: len(sorted),
		P50:     quantile(sorted, 50),
		P95:     quantile(sorted, 95),
		P99:     quantile(sorted, 99),
	}
}

// Count returns number of samples recorded.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.samples)
	}
	return l.next
}

func (l *LatencyTracker) sorted() []float64 {
	l.mu.RLock()
	n := l.next
	if l.full {
		n = len(l.samples)
	}
	out := append([]float64(nil), l.samples[:n]...)
	l.mu.RUnlock()

	sort.Float64s(out)
	return out
}

func quantile(sorted []float64, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	switch {
	case p <= 0:
		return time.Duration(sorted[0])
	case p >= 100:
		return time.Duration(sorted[len(sorted)-1])
	}
	return time.Duration(stat.Quantile(p/100, stat.Empirical, sorted, nil))
}
