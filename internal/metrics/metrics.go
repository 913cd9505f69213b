package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlepos_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlepos_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are the paths served by the API. Anything else is labeled
// "other" to bound label cardinality.
var knownRoutes = map[string]bool{
	"/healthz":            true,
	"/readyz":             true,
	"/metrics":            true,
	"/api/v1/position":    true,
	"/api/v1/groundtrack": true,
	"/api/v1/passes":      true,
	"/api/v1/catalog":     true,
}

// normalizeRoute maps a request path to a bounded metric label.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

// Recorder collects query metrics. It satisfies query.Recorder.
type Recorder struct {
	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	Propagators   *prometheus.CounterVec
	CatalogSize   *prometheus.GaugeVec
}

// NewRecorder registers the query metrics against reg, or the default
// registry when reg is nil. Registering twice on the same registry returns
// the existing collectors.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	queries, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tlepos_queries_total",
		Help: "Position queries by operation and outcome kind.",
	}, []string{"op", "outcome"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tlepos_query_duration_seconds",
		Help:    "Position query latency in seconds.",
		Buckets: []float64{1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	props, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tlepos_propagators_initialized_total",
		Help: "Propagators initialized, by branch.",
	}, []string{"branch"}))
	if err != nil {
		return nil, err
	}
	size, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tlepos_catalog_entries",
		Help: "Catalog entries by state (ready or failed).",
	}, []string{"state"}))
	if err != nil {
		return nil, err
	}

	return &Recorder{Queries: queries, QueryDuration: duration, Propagators: props, CatalogSize: size}, nil
}

// register adds c to reg, reusing an identical collector already present.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveQuery counts one query and records its latency.
func (r *Recorder) ObserveQuery(op, outcome string, d time.Duration) {
	r.Queries.WithLabelValues(op, outcome).Inc()
	r.QueryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveBranch counts one initialized propagator.
func (r *Recorder) ObserveBranch(branch string) {
	r.Propagators.WithLabelValues(branch).Inc()
}

// SetCatalogSize sets the ready and failed entry gauges.
func (r *Recorder) SetCatalogSize(total, failed int) {
	r.CatalogSize.WithLabelValues("ready").Set(float64(total - failed))
	r.CatalogSize.WithLabelValues("failed").Set(float64(failed))
}
