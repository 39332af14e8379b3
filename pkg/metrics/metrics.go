// Package metrics tracks per-node input/output record counts and a
// bounded ring of recent iteration durations, and mirrors the
// cumulative counters into Prometheus so a process can expose
// /metrics alongside the JSON/HTML snapshot contract (see
// pkg/metricsapi).
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const maxDurationSamples = 1000

var (
	// NodeInputRecords is the cumulative number of records a node has
	// consumed, labeled by node name.
	NodeInputRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowrunner_node_input_records_total",
			Help: "Total number of records consumed by a node.",
		},
		[]string{"node"},
	)

	// NodeOutputRecords is the cumulative number of records a node has
	// produced, labeled by node name.
	NodeOutputRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowrunner_node_output_records_total",
			Help: "Total number of records produced by a node.",
		},
		[]string{"node"},
	)

	// NodeIterationDuration observes wall-clock seconds per iteration,
	// labeled by node name.
	NodeIterationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowrunner_node_iteration_duration_seconds",
			Help:    "Wall-clock duration of a node's processing() call, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node"},
	)
)

func init() {
	prometheus.MustRegister(NodeInputRecords)
	prometheus.MustRegister(NodeOutputRecords)
	prometheus.MustRegister(NodeIterationDuration)
}

// Metrics holds one node's counters and its bounded duration ring. It
// is written only by the node's own worker and read by the supervisor
// or the metrics HTTP endpoint; reads tolerate a slightly stale
// snapshot rather than blocking writers.
type Metrics struct {
	node string

	mu        sync.RWMutex
	input     int64
	output    int64
	durations *durationRing
}

// New creates a Metrics record for the given node name.
func New(node string) *Metrics {
	return &Metrics{
		node:      node,
		durations: newDurationRing(maxDurationSamples),
	}
}

// AddInput accumulates consumed record count.
func (m *Metrics) AddInput(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.input += int64(n)
	m.mu.Unlock()
	NodeInputRecords.WithLabelValues(m.node).Add(float64(n))
}

// AddOutput accumulates produced record count.
func (m *Metrics) AddOutput(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.output += int64(n)
	m.mu.Unlock()
	NodeOutputRecords.WithLabelValues(m.node).Add(float64(n))
}

// ObserveDuration appends a wall-clock duration sample and mirrors it
// into the Prometheus histogram.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.mu.Lock()
	m.durations.Push(d)
	m.mu.Unlock()
	NodeIterationDuration.WithLabelValues(m.node).Observe(d.Seconds())
}

// Totals returns the cumulative input/output record counts.
func (m *Metrics) Totals() (input, output int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.input, m.output
}

// MeanDuration returns the mean of the recent duration samples, 0 if
// none have been recorded. unitMS converts the result to milliseconds.
func (m *Metrics) MeanDuration(unitMS bool) float64 {
	m.mu.RLock()
	samples := m.durations.Slice()
	m.mu.RUnlock()
	return mean(samples, unitMS)
}

// StdDuration returns the population standard deviation of the recent
// duration samples, 0 if none have been recorded.
func (m *Metrics) StdDuration(unitMS bool) float64 {
	m.mu.RLock()
	samples := m.durations.Slice()
	m.mu.RUnlock()
	return std(samples, unitMS)
}

// SumDuration returns the scalar total of the recent duration samples.
func (m *Metrics) SumDuration(unitMS bool) float64 {
	m.mu.RLock()
	samples := m.durations.Slice()
	m.mu.RUnlock()
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	if unitMS {
		return float64(total.Nanoseconds()) / float64(time.Millisecond)
	}
	return total.Seconds()
}

func mean(samples []time.Duration, unitMS bool) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total float64
	for _, s := range samples {
		total += toUnit(s, unitMS)
	}
	return total / float64(len(samples))
}

func std(samples []time.Duration, unitMS bool) float64 {
	if len(samples) == 0 {
		return 0
	}
	avg := mean(samples, unitMS)
	var sumSq float64
	for _, s := range samples {
		d := toUnit(s, unitMS) - avg
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

func toUnit(d time.Duration, unitMS bool) float64 {
	if unitMS {
		return float64(d.Nanoseconds()) / float64(time.Millisecond)
	}
	return d.Seconds()
}
