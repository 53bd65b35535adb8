package gateway

import (
	"math"
	"slices"
	"sync"
	"time"
)

// LatencyTracker keeps the last samples of event-to-delivery latency and
// reports percentiles in milliseconds.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64
	pos     int
	count   int
}

// NewLatencyTracker creates a tracker that holds the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LatencyTracker{samples: make([]float64, capacity)}
}

// Record adds a latency sample in milliseconds.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.samples[lt.pos] = ms
	lt.pos = (lt.pos + 1) % len(lt.samples)
	lt.count = min(lt.count+1, len(lt.samples))
	lt.mu.Unlock()
}

// RecordDuration adds d as a sample.
func (lt *LatencyTracker) RecordDuration(d time.Duration) {
	lt.Record(float64(d.Microseconds()) / 1000.0)
}

// Percentiles returns p50, p95 and p99, or zeros without samples.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	lt.mu.Lock()
	sorted := slices.Clone(lt.samples[:lt.count])
	lt.mu.Unlock()
	if len(sorted) == 0 {
		return 0, 0, 0
	}

	slices.Sort(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

// Count returns the number of samples held.
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

// percentile linearly interpolates the p-th quantile of sorted.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
