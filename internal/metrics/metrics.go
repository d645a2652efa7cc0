// Package metrics provides a backend-agnostic abstraction for recording
// operational metrics from the sink, the writers and the retention pruner.
//
// The default backend is a no-op, so the helpers are always safe to call.
// Concrete systems live in subpackages (prompush, datadog) and are installed
// with SetBackend at startup.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers.
const (
	StepTotal           = "sqlsink_step_total"
	StepDurationSeconds = "sqlsink_step_duration_seconds"
	RowsTotal           = "sqlsink_rows_total"
	BatchesTotal        = "sqlsink_batches_total"
)

// Row kinds passed to RecordRows.
const (
	KindEmitted = "emitted"
	KindDropped = "dropped"
	KindWritten = "written"
	KindFailed  = "failed"
	KindPruned  = "pruned"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of step against table and observes its
// duration. Steps are things like "ddl", "write" and "prune".
func RecordStep(table, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"table":  table,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRows increments the row counter for table and kind. Non-positive
// deltas are ignored.
func RecordRows(table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"table": table,
		"kind":  kind,
	})
}

// RecordBatches increments the batch counter for table.
func RecordBatches(table string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"table": table,
	})
}
