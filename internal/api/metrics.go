package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/appaccess/internal/infrastructure/influxdb"
)

const metricsNamespace = "appaccess"

// metrics holds the server's Prometheus collectors.
type metrics struct {
	handler      http.Handler
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	authAttempts *prometheus.CounterVec
	accessEvents *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry, hub *Hub) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_attempts_total",
			Help:      "Login, register and refresh attempts by outcome.",
		}, []string{"kind", "outcome"}),
		accessEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "access_events_total",
			Help:      "Access-change events emitted by type.",
		}, []string{"type"}),
	}

	wsClients := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "websocket_clients",
		Help:      "Connected WebSocket clients.",
	}, func() float64 { return float64(hub.ClientCount()) })

	for _, c := range []prometheus.Collector{
		m.requests, m.duration, m.authAttempts, m.accessEvents, wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return m, nil
}

func (m *metrics) observeRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// recordAuth counts an auth outcome in Prometheus and, when configured,
// writes it to InfluxDB.
func (s *Server) recordAuth(kind, outcome, reason string) {
	s.metrics.authAttempts.WithLabelValues(kind, outcome).Inc()
	if s.influx != nil {
		s.influx.WriteAuthEvent(influxdb.AuthEvent{Kind: kind, Outcome: outcome, Reason: reason})
	}
}

// handleMetrics serves the Prometheus exposition.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.handler.ServeHTTP(w, r)
}
