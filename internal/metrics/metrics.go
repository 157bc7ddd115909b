// Package metrics is the backend-agnostic instrumentation layer of the job.
//
// Stages call the package-level helpers (RecordStep, RecordRows,
// RecordQualityRule, RecordObservation); the helpers forward to a single
// global Backend that defaults to a no-op, so instrumentation is always safe
// to call. Concrete systems live in subpackages (prompush, datadog) and are
// installed once by main via SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers.
const (
	StepTotal          = "creditetl_step_total"
	StepDuration       = "creditetl_step_duration_seconds"
	RowsTotal          = "creditetl_rows_total"
	QualityRuleTotal   = "creditetl_quality_rule_total"
	QualityObservation = "creditetl_quality_observation"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface metric systems implement.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a latency/duration style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge sets a point-in-time value.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes or flushes buffered metrics.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. Passing nil keeps the existing backend.
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
func Flush() error { return current().Flush() }

// RecordStep counts one execution of a pipeline stage and observes its
// duration, labelled with success or failure.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds n rows to the counter of the given stage, e.g. "read",
// "cleaned", "dropped", "written_object", "written_relational".
func RecordRows(job, stage string, n int64) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"job": job, "stage": stage})
}

// RecordQualityRule counts one evaluated data-quality rule by outcome.
func RecordQualityRule(context, rule string, passed bool) {
	outcome := "passed"
	if !passed {
		outcome = "failed"
	}
	current().IncCounter(QualityRuleTotal, 1, Labels{"context": context, "rule": rule, "outcome": outcome})
}

// RecordObservation publishes one data-quality observation as a gauge.
// column is empty for table-level observations.
func RecordObservation(context, name, column string, value float64) {
	current().SetGauge(QualityObservation, value, Labels{"context": context, "name": name, "column": column})
}
