package httpapi

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"statarb/internal/analytics"
)

// Metrics holds the dashboard's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	LastSharpe      prometheus.Gauge
	LastMaxDrawdown prometheus.Gauge
	LastFinalEquity prometheus.Gauge
	TargetAchieved  prometheus.Gauge
}

// NewMetrics creates and registers the dashboard collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "statarb_http_requests_total", Help: "Dashboard HTTP requests"},
			[]string{"route", "code"},
		),
		LastSharpe: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "statarb_last_run_sharpe_ratio", Help: "Sharpe ratio of the latest summary"},
		),
		LastMaxDrawdown: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "statarb_last_run_max_drawdown", Help: "Max drawdown of the latest summary"},
		),
		LastFinalEquity: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "statarb_last_run_final_equity", Help: "Final equity of the latest summary"},
		),
		TargetAchieved: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "statarb_last_run_target_achieved", Help: "1 if the latest run reached the target Sharpe ratio"},
		),
	}
	m.registry.MustRegister(m.Requests, m.LastSharpe, m.LastMaxDrawdown, m.LastFinalEquity, m.TargetAchieved)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSummary sets the last-run gauges from s.
func (m *Metrics) ObserveSummary(s analytics.Summary) {
	m.LastSharpe.Set(s.Metrics.Sharpe)
	m.LastMaxDrawdown.Set(s.Metrics.MaxDrawdown)
	m.LastFinalEquity.Set(s.FinalEquity.InexactFloat64())
	if s.TargetAchieved {
		m.TargetAchieved.Set(1)
	} else {
		m.TargetAchieved.Set(0)
	}
}

// instrument counts requests to route by status code.
func (m *Metrics) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		m.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
