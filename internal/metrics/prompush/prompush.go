// Package prompush pushes job metrics to a Prometheus Pushgateway.
//
// A batch job exits before any scraper could reach it, so collectors live in
// a private registry that Flush pushes under the job's grouping key. The job
// label travels as the Pushgateway "job" group and is not repeated on the
// individual series.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"creditetl/internal/metrics"
)

// Backend is a Pushgateway metrics.Backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec
	rowCounter   *prometheus.CounterVec
	ruleCounter  *prometheus.CounterVec
	observations *prometheus.GaugeVec
}

// NewBackend registers the job collectors. gatewayURL is the Pushgateway base
// URL; jobName defaults to "creditetl".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "creditetl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline stage duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows seen per pipeline stage.",
		}, []string{"stage"}),
		ruleCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.QualityRuleTotal,
			Help: "Data-quality rules evaluated by context, rule and outcome.",
		}, []string{"context", "rule", "outcome"}),
		observations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.QualityObservation,
			Help: "Data-quality observations of the last run.",
		}, []string{"context", "name", "column"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter": b.stepCounter,
		"step summary": b.stepDuration,
		"row counter":  b.rowCounter,
		"rule counter": b.ruleCounter,
		"observations": b.observations,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["stage"]).Add(delta)
		}
	case metrics.QualityRuleTotal:
		if b.ruleCounter != nil {
			b.ruleCounter.WithLabelValues(labels["context"], labels["rule"], labels["outcome"]).Add(delta)
		}
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	if name != metrics.QualityObservation || b.observations == nil {
		return
	}
	b.observations.WithLabelValues(labels["context"], labels["name"], labels["column"]).Set(value)
}

// Flush pushes the registry to the Pushgateway, replacing the job's group.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
