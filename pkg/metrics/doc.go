// Package metrics records per-node counters (input/output record
// totals) and a bounded ring of recent iteration durations, mirroring
// the cumulative counters into Prometheus vectors labeled by node
// name. mean/std/sum all return 0 for an empty ring rather than NaN.
package metrics
