package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry        *prometheus.Registry
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	conversions     *prometheus.CounterVec
	engineDuration  *prometheus.HistogramVec
	uploads         *prometheus.CounterVec
	overlayFailures prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "darkroom_http_requests_total",
			Help: "Total HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "darkroom_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "darkroom_conversions_total",
			Help: "Conversions by output format and outcome.",
		}, []string{"format", "outcome"}),
		engineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "darkroom_engine_duration_seconds",
			Help:    "Time spent in the processing engine.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"format"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "darkroom_uploads_total",
			Help: "Storage uploads by outcome.",
		}, []string{"outcome"}),
		overlayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "darkroom_overlay_fetch_failures_total",
			Help: "Overlay fetches that failed and were skipped.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.conversions,
		m.engineDuration,
		m.uploads,
		m.overlayFailures,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		m.requestTotal.WithLabelValues(labels...).Inc()
		m.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) ObserveConversion(format, outcome string) {
	m.conversions.WithLabelValues(format, outcome).Inc()
}

func (m *Metrics) ObserveEngine(format string, d time.Duration) {
	m.engineDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpload(outcome string) {
	m.uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveOverlayFailure() {
	m.overlayFailures.Inc()
}
