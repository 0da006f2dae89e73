package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"kongman/internal/probe"
)

// Metrics holds the gateway health metrics exported by the monitor.
type Metrics struct {
	registry *prometheus.Registry

	Up          *prometheus.GaugeVec
	Latency     *prometheus.GaugeVec
	StatusCode  *prometheus.GaugeVec
	ProbesTotal *prometheus.CounterVec
	Runs        prometheus.Counter
	LastRun     prometheus.Gauge
}

// NewMetrics registers the monitor metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := []string{"gateway", "gateway_id"}

	return &Metrics{
		registry: reg,
		Up: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kongman_gateway_up",
			Help: "Whether the last connection test of the gateway succeeded (1) or failed (0)",
		}, labels),
		Latency: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kongman_gateway_probe_latency_seconds",
			Help: "Round-trip time of the last successful connection test",
		}, labels),
		StatusCode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kongman_gateway_probe_status_code",
			Help: "HTTP status of the last connection test (0 when no response)",
		}, labels),
		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kongman_gateway_probes_total",
			Help: "Connection tests run by the monitor",
		}, []string{"gateway", "gateway_id", "result"}),
		Runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "kongman_monitor_runs_total",
			Help: "Completed monitor rounds",
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kongman_monitor_last_run_timestamp_seconds",
			Help: "Unix time of the last completed monitor round",
		}),
	}
}

// Observe records one batch of results.
func (m *Metrics) Observe(batch *probe.BatchResult) {
	for _, r := range batch.Results {
		gw, res := r.Gateway, r.Result
		result := "failure"
		up := 0.0
		if res.Success {
			result = "success"
			up = 1
			m.Latency.WithLabelValues(gw.Name, gw.ID).Set(res.Latency.Seconds())
		}
		m.Up.WithLabelValues(gw.Name, gw.ID).Set(up)
		m.StatusCode.WithLabelValues(gw.Name, gw.ID).Set(float64(res.StatusCode))
		m.ProbesTotal.WithLabelValues(gw.Name, gw.ID, result).Inc()
	}
	m.Runs.Inc()
	m.LastRun.SetToCurrentTime()
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
