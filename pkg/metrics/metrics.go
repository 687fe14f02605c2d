// Package metrics counts gate decisions and batch jobs and exports them as a
// node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one cimisweep invocation.
// A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - cimisweep_gate_actions_total{status} - gate outcomes (skipped, succeeded, failed)
//   - cimisweep_batch_jobs_total{result} - finished batch jobs (completed, failed)
//   - cimisweep_batch_jobs_running - jobs currently running
//   - cimisweep_batch_job_duration_seconds - job wall time
//   - cimisweep_reports_written_total - persisted escalation reports
type Metrics struct {
	registry *prometheus.Registry

	GateActions     *prometheus.CounterVec
	BatchJobs       *prometheus.CounterVec
	BatchRunning    prometheus.Gauge
	BatchJobSeconds prometheus.Histogram
	ReportsWritten  prometheus.Counter
}

// New registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		GateActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cimisweep_gate_actions_total",
				Help: "Destructive actions decided by the gate, by outcome",
			},
			[]string{"status"},
		),
		BatchJobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cimisweep_batch_jobs_total",
				Help: "Batch jobs that reached a terminal state, by result",
			},
			[]string{"result"},
		),
		BatchRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cimisweep_batch_jobs_running",
			Help: "Batch jobs currently running",
		}),
		BatchJobSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cimisweep_batch_job_duration_seconds",
			Help:    "Wall time of a single batch job",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
		}),
		ReportsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "cimisweep_reports_written_total",
			Help: "Escalation reports persisted",
		}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) GateDecision(status string) {
	if m == nil {
		return
	}
	m.GateActions.WithLabelValues(status).Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.BatchRunning.Inc()
}

func (m *Metrics) JobFinished(failed bool, d time.Duration) {
	if m == nil {
		return
	}
	m.BatchRunning.Dec()
	m.BatchJobSeconds.Observe(d.Seconds())
	result := "completed"
	if failed {
		result = "failed"
	}
	m.BatchJobs.WithLabelValues(result).Inc()
}

func (m *Metrics) ReportWritten() {
	if m == nil {
		return
	}
	m.ReportsWritten.Inc()
}

// WriteTextfile atomically writes the current values to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
