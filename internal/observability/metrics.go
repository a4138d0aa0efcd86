package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the dashboard.
type Metrics struct {
	ViewRequests       *prometheus.CounterVec   // labels: view, outcome={ok,empty,invalid,error}
	ChartRenderSeconds *prometheus.HistogramVec // labels: view
	DatasetRows        *prometheus.GaugeVec     // labels: table
	DatasetLoadSeconds prometheus.Gauge
	DatasetReady       prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		ViewRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covid_dashboard",
			Name:      "view_requests_total",
			Help:      "Dashboard view requests by view and outcome.",
		}, []string{"view", "outcome"}),
		ChartRenderSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "covid_dashboard",
			Name:      "chart_render_duration_seconds",
			Help:      "Time spent drawing a PNG chart.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"view"}),
		DatasetRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "covid_dashboard",
			Name:      "dataset_rows",
			Help:      "Rows loaded per base table.",
		}, []string{"table"}),
		DatasetLoadSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_dashboard",
			Name:      "dataset_load_duration_seconds",
			Help:      "Wall time of the startup dataset load.",
		}),
		DatasetReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "covid_dashboard",
			Name:      "dataset_ready",
			Help:      "1 once the dataset is loaded, 0 before.",
		}),
	}
}

// NewMetrics creates all dashboard metrics and registers them with the
// default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ViewRequests,
		m.ChartRenderSeconds,
		m.DatasetRows,
		m.DatasetLoadSeconds,
		m.DatasetReady,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build
// several without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
