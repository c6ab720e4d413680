package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather"

// Metrics holds the Prometheus counters, histograms, and gauges for both pipelines.
// Each service only moves the series that belong to its own pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	DecodeErrors     prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Ingestion metrics.
	BatchesFlushed prometheus.Counter
	RowsFlushed    prometheus.Counter
	FlushErrors    prometheus.Counter
	CommitErrors   prometheus.Counter
	BatchSize      prometheus.Histogram
	FlushDuration  prometheus.Histogram

	// Alert metrics.
	AlertsPublished    prometheus.Counter
	AlertPublishErrors prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages polled from the readings topic.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total messages skipped because they could not be decoded.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batches_flushed_total",
			Help:      "Total batches durably written to the database.",
		}),
		RowsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_flushed_total",
			Help:      "Total readings upserted into the database.",
		}),
		FlushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "flush_errors_total",
			Help:      "Total failed batch writes (retried).",
		}),
		CommitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_errors_total",
			Help:      "Total failed consumer offset commits.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batch_size",
			Help:      "Number of readings per flushed batch.",
			Buckets:   []float64{1, 10, 50, 100, 200, 300, 500, 1000},
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "flush_duration_seconds",
			Help:      "Duration of a batch database write.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "published_total",
			Help:      "Total rain alerts written to the alerts topic.",
		}),
		AlertPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "publish_errors_total",
			Help:      "Total rain alerts that could not be published.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.DecodeErrors,
		m.PipelineRunning,
		m.BatchesFlushed,
		m.RowsFlushed,
		m.FlushErrors,
		m.CommitErrors,
		m.BatchSize,
		m.FlushDuration,
		m.AlertsPublished,
		m.AlertPublishErrors,
	}
}
