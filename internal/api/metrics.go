package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/richconv/internal/convert"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// It doubles as the converter's fallback observer.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	conversions *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	batches     prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "richconv",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "richconv",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "richconv",
			Name:      "conversions_total",
			Help:      "Conversions by direction and outcome",
		}, []string{"direction", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "richconv",
			Name:      "fallbacks_total",
			Help:      "Nodes no rule claimed, flattened into their children",
		}, []string{"direction"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "richconv",
			Name:      "batch_jobs_submitted_total",
			Help:      "Batch jobs accepted into the queue",
		}),
	}

	bootTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "richconv",
		Name:      "boot_time",
		Help:      "Server startup time",
	})
	bootTime.Set(float64(time.Now().UnixMilli()))

	m.registry.MustRegister(
		m.requests, m.duration, m.conversions, m.fallbacks, m.batches, bootTime,
		collectors.NewGoCollector(),
	)
	return m
}

// Fallback implements convert.Observer.
func (m *Metrics) Fallback(dir convert.Direction, _ string) {
	m.fallbacks.WithLabelValues(string(dir)).Inc()
}

// Conversion records one conversion outcome.
func (m *Metrics) Conversion(dir convert.Direction, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.conversions.WithLabelValues(string(dir), outcome).Inc()
}

// WatchQueue exports the batch queue depth as a gauge.
func (m *Metrics) WatchQueue(depth func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "richconv",
		Name:      "batch_queue_depth",
		Help:      "Batch jobs waiting for a worker",
	}, func() float64 { return float64(depth()) }))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
