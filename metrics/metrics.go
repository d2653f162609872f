// Package metrics provides Prometheus metrics for the pipeline services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline metrics.
type Metrics struct {
	// Counters
	RunsTotal       *prometheus.CounterVec
	TasksRun        *prometheus.CounterVec
	RowsAppended    *prometheus.CounterVec
	QualityFailures *prometheus.CounterVec

	// Gauges
	CursorPosition *prometheus.GaugeVec
	LastRunTime    prometheus.Gauge

	// Histograms
	CycleDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a new metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crypto_pipeline",
			Name:      "runs_total",
			Help:      "Total transformation runs by outcome",
		},
		[]string{"status"}, // "success", "quality_failed", "error"
	)

	m.TasksRun = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crypto_pipeline",
			Name:      "tasks_run_total",
			Help:      "Total task executions by task and materialization",
		},
		[]string{"task", "materialization"},
	)

	m.RowsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crypto_pipeline",
			Name:      "fact_rows_appended_total",
			Help:      "Total fact rows appended by table",
		},
		[]string{"table"},
	)

	m.QualityFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crypto_pipeline",
			Name:      "quality_check_failures_total",
			Help:      "Total failed quality checks by check name",
		},
		[]string{"check"},
	)

	m.CursorPosition = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "crypto_pipeline",
			Name:      "cursor_position_seconds",
			Help:      "Incremental cursor position as a unix timestamp, per task",
		},
		[]string{"task"},
	)

	m.LastRunTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "crypto_pipeline",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last completed transformation run",
		},
	)

	m.CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "crypto_pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of transformation cycles",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	m.registry.MustRegister(
		m.RunsTotal,
		m.TasksRun,
		m.RowsAppended,
		m.QualityFailures,
		m.CursorPosition,
		m.LastRunTime,
		m.CycleDuration,
	)

	return m
}

// ObserveCycle records one completed cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	m.CycleDuration.Observe(d.Seconds())
	m.LastRunTime.Set(float64(time.Now().Unix()))
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
