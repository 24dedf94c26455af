package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "census_etl"

// Metrics holds the Prometheus counters and histograms for a load run.
type Metrics struct {
	RecordsFetched    prometheus.Counter
	UnknownCodes      prometheus.Counter
	RowsWritten       *prometheus.CounterVec // labels: table
	LoadFailures      prometheus.Counter
	ExportsWritten    prometheus.Counter
	MessagesPublished prometheus.Counter
	RunsTotal         *prometheus.CounterVec // labels: outcome={loaded,failed,skipped}

	RunDuration   prometheus.Histogram
	FetchDuration prometheus.Histogram
}

// NewRegistry returns a registry holding the Go runtime and process collectors.
// Each CLI invocation gathers from its own registry, which both the /metrics
// endpoint and the Pushgateway push read from.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics creates all run metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.RecordsFetched,
		m.UnknownCodes,
		m.RowsWritten,
		m.LoadFailures,
		m.ExportsWritten,
		m.MessagesPublished,
		m.RunsTotal,
		m.RunDuration,
		m.FetchDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere,
// avoiding "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Person records returned by the Census API.",
		}),
		UnknownCodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_codes_total",
			Help:      "Coded cells left unchanged because the code had no label.",
		}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows committed to the database, by table.",
		}, []string{"table"}),
		LoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_failures_total",
			Help:      "Database loads that were rolled back.",
		}),
		ExportsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_written_total",
			Help:      "CSV exports written to the output directory.",
		}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Person records published to Kafka.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by load outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch, recode and persist run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Census API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
