// Package metrics defines the minimal metrics seam the import pipeline emits
// through. The core code depends only on Backend; concrete backends
// (Datadog, or a fake in tests) are configured by the binary at startup.
package metrics

import "sync"

// Labels are metric tag key/values.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names emitted by the import pipeline.
const (
	MetricRecordsTotal        = "import_records_total"
	MetricErrorsTotal         = "import_errors_total"
	MetricCorrectionsTotal    = "import_corrections_total"
	MetricStageDurationSecond = "import_stage_duration_seconds"
)

var (
	mu      sync.RWMutex
	backend Backend = noop{}
)

// SetBackend installs the process backend. nil restores the noop default.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = noop{}
		return
	}
	backend = b
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.ObserveHistogram(name, value, labels)
}

type noop struct{}

func (noop) IncCounter(string, float64, Labels)       {}
func (noop) ObserveHistogram(string, float64, Labels) {}
