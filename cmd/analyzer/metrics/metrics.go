// Package metrics provides Prometheus metrics instrumentation for the analyzer.
//
// It exposes operational metrics about the analysis pipeline's performance,
// including the duration of each stage (collect, normalize, analyze), the
// latest health figures, and error tracking. All metrics are exposed via the
// /metrics HTTP endpoint for Prometheus scraping.
//
// Metrics exposed:
//   - cellwatch_source_collect_seconds: Histogram of record collection duration
//   - cellwatch_normalize_seconds: Histogram of normalization duration
//   - cellwatch_analyze_seconds: Histogram of analysis duration
//   - cellwatch_snapshot_age_seconds: Gauge of current snapshot age
//   - cellwatch_soh_percent: Gauge of the latest state-of-health estimate
//   - cellwatch_rul_cycles: Gauge of the latest remaining-useful-life estimate
//   - cellwatch_anomalies: Gauge of anomalies flagged by the latest run
//   - cellwatch_skipped_rows: Gauge of rows rejected by the latest run
//   - cellwatch_errors_total: Counter of errors by component and reason
//
// All metrics include the battery label for fleet deployments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the analyzer.
type Metrics struct {
	SourceCollectSeconds prometheus.Histogram
	NormalizeSeconds     prometheus.Histogram
	AnalyzeSeconds       prometheus.Histogram
	SnapshotAgeSeconds   prometheus.Gauge
	SoHPercent           prometheus.Gauge
	RULCycles            prometheus.Gauge
	Anomalies            prometheus.Gauge
	SkippedRows          prometheus.Gauge
	ErrorsTotal          *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(battery string) *Metrics {
	return &Metrics{
		SourceCollectSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "cellwatch_source_collect_seconds",
			Help: "Time spent collecting records from the data source",
			ConstLabels: prometheus.Labels{
				"battery": battery,
			},
			Buckets: prometheus.DefBuckets, // Default buckets: .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
		}),

		NormalizeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "cellwatch_normalize_seconds",
			Help: "Time spent resolving fields and grouping cycles",
			ConstLabels: prometheus.Labels{
				"battery": battery,
			},
			Buckets: prometheus.DefBuckets,
		}),

		AnalyzeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "cellwatch_analyze_seconds",
			Help: "Time spent assessing health and fitting forecast models",
			ConstLabels: prometheus.Labels{
				"battery": battery,
			},
			Buckets: prometheus.DefBuckets,
		}),

		SnapshotAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cellwatch_snapshot_age_seconds",
			Help: "Age of the current analysis snapshot in seconds",
			ConstLabels: prometheus.Labels{
				"battery": battery,
			},
		}),

		SoHPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cellwatch_soh_percent",
			Help: "Latest state-of-health estimate in percent",
			ConstLabels: prometheus.Labels{
				"battery": battery,
			},
		}),

		RULCycles: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cellwatch_rul_cycles",
			Help: "Latest remaining-useful-life estimate in cycles",
			ConstLabels: prometheus.Labels{
				"battery": battery,
			},
		}),

		Anomalies: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cellwatch_anomalies",
			Help: "Anomalies flagged by the latest analysis run",
			ConstLabels: prometheus.Labels{
				"battery": battery,
			},
		}),

		SkippedRows: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cellwatch_skipped_rows",
			Help: "Rows rejected during normalization by the latest run",
			ConstLabels: prometheus.Labels{
				"battery": battery,
			},
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cellwatch_errors_total",
			Help: "Total number of errors by component and reason",
			ConstLabels: prometheus.Labels{
				"battery": battery,
			},
		}, []string{"component", "reason"}),
	}
}

// RecordCollect records the time spent collecting records.
func (m *Metrics) RecordCollect(seconds float64) {
	m.SourceCollectSeconds.Observe(seconds)
}

// RecordNormalize records the time spent normalizing.
func (m *Metrics) RecordNormalize(seconds float64) {
	m.NormalizeSeconds.Observe(seconds)
}

// RecordAnalyze records the time spent on health assessment and forecasting.
func (m *Metrics) RecordAnalyze(seconds float64) {
	m.AnalyzeSeconds.Observe(seconds)
}

// SetSnapshotAge sets the current snapshot age.
func (m *Metrics) SetSnapshotAge(seconds float64) {
	m.SnapshotAgeSeconds.Set(seconds)
}

// SetSoH sets the latest state-of-health estimate.
func (m *Metrics) SetSoH(percent float64) {
	m.SoHPercent.Set(percent)
}

// SetRUL sets the latest remaining-useful-life estimate.
func (m *Metrics) SetRUL(cycles int) {
	m.RULCycles.Set(float64(cycles))
}

// SetAnomalies sets the anomaly count of the latest run.
func (m *Metrics) SetAnomalies(count int) {
	m.Anomalies.Set(float64(count))
}

// SetSkippedRows sets the skipped-row count of the latest run.
func (m *Metrics) SetSkippedRows(count int) {
	m.SkippedRows.Set(float64(count))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
