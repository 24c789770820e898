package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager agrupa las métricas del proceso en un registry propio.
// Implementa querycache.Observer.
type Manager struct {
	Registry *prometheus.Registry

	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheFetchFailures *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	CacheFetchLatency  *prometheus.HistogramVec
	HTTPRequests       *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
}

func NewManager(serviceName string) *Manager {
	ns := namespace(serviceName)
	registry := prometheus.NewRegistry()

	m := &Manager{
		Registry: registry,
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "query_cache_hits_total",
			Help:      "Reads served from a fresh cache entry.",
		}, []string{"entity"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "query_cache_misses_total",
			Help:      "Reads that needed a backend fetch (absent, stale or invalidated entry).",
		}, []string{"entity"}),
		CacheFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "query_cache_fetch_failures_total",
			Help:      "Backend fetches that failed after retries.",
		}, []string{"entity"}),
		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "query_cache_invalidated_entries_total",
			Help:      "Cache entries marked stale by mutations.",
		}, []string{"entity"}),
		CacheFetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "query_cache_fetch_seconds",
			Help:      "Latency of successful backend fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.CacheFetchFailures,
		m.CacheInvalidations,
		m.CacheFetchLatency,
		m.HTTPRequests,
		m.HTTPLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Manager) Hit(entity string)         { m.CacheHits.WithLabelValues(entity).Inc() }
func (m *Manager) Miss(entity string)        { m.CacheMisses.WithLabelValues(entity).Inc() }
func (m *Manager) FetchFailed(entity string) { m.CacheFetchFailures.WithLabelValues(entity).Inc() }

func (m *Manager) Fetch(entity string, took time.Duration) {
	m.CacheFetchLatency.WithLabelValues(entity).Observe(took.Seconds())
}

func (m *Manager) Invalidated(entity string, entries int) {
	m.CacheInvalidations.WithLabelValues(entity).Add(float64(entries))
}

// Handler expone el registry en formato Prometheus.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware mide cada request usando el patrón de ruta de chi (no el path crudo).
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func namespace(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "app"
	}
	return s
}
