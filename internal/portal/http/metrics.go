package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the portal's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Logins       *prometheus.CounterVec
	Callbacks    *prometheus.CounterVec
	Logouts      prometheus.Counter
	ForecastRuns *prometheus.CounterVec
	RateLimited  *prometheus.CounterVec
}

// NewMetrics registers the portal collectors plus the Go runtime and process
// collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "logins_started_total",
			Help:      "Login redirects issued, by outcome.",
		}, []string{"outcome"}),
		Callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "callbacks_total",
			Help:      "Authorization callbacks handled, by outcome.",
		}, []string{"outcome"}),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "logouts_total",
			Help:      "Logout requests handled.",
		}),
		ForecastRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "forecast_relays_total",
			Help:      "Forecast relay attempts, by outcome.",
		}, []string{"outcome"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per client rate limiter, by route class.",
		}, []string{"class"}),
	}

	reg.MustRegister(
		m.Logins,
		m.Callbacks,
		m.Logouts,
		m.ForecastRuns,
		m.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) rejected(class string) func(*http.Request) {
	c := m.RateLimited.WithLabelValues(class)
	return func(*http.Request) { c.Inc() }
}
