package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Object outcomes.
const (
	OutcomeProduced = "produced"
	OutcomeOmitted  = "omitted"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Catalog cache results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
)

var (
	objectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarpaper_objects_total",
			Help: "Objects processed, by category and outcome.",
		},
		[]string{"category", "outcome"},
	)

	fetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solarpaper_fetch_duration_seconds",
			Help:    "Per-object fetch or propagation duration in seconds.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	snapshotBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solarpaper_snapshot_bytes",
		Help: "Uncompressed size of the last snapshot written.",
	})

	catalogCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarpaper_catalog_cache_total",
			Help: "Catalog cache lookups, by result.",
		},
		[]string{"result"},
	)

	builderState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solarpaper_builder_state",
		Help: "Current snapshot builder state.",
	})

	lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solarpaper_last_success_timestamp_seconds",
		Help: "Unix time of the last completed snapshot.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarpaper_http_requests_total",
			Help: "Total number of HTTP requests to the status server.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solarpaper_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(objectsTotal)
	prometheus.MustRegister(fetchDurationSeconds)
	prometheus.MustRegister(snapshotBytes)
	prometheus.MustRegister(catalogCacheTotal)
	prometheus.MustRegister(builderState)
	prometheus.MustRegister(lastSuccess)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
}

// RecordObject counts one object outcome.
func RecordObject(category, outcome string) {
	objectsTotal.WithLabelValues(category, outcome).Inc()
}

// ObserveFetch records the duration of one fetch or propagation.
func ObserveFetch(strategy string, d time.Duration) {
	fetchDurationSeconds.WithLabelValues(strategy).Observe(d.Seconds())
}

// SetSnapshotBytes records the size of the snapshot just written.
func SetSnapshotBytes(n int64) { snapshotBytes.Set(float64(n)) }

// IncCatalogCache counts a catalog cache lookup.
func IncCatalogCache(result string) { catalogCacheTotal.WithLabelValues(result).Inc() }

// SetBuilderState records the builder state ordinal.
func SetBuilderState(state int) { builderState.Set(float64(state)) }

// MarkSuccess records the completion time of a snapshot.
func MarkSuccess(t time.Time) { lastSuccess.Set(float64(t.Unix())) }

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Push sends the current values of every registered collector to a
// Pushgateway under job.
func Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}

// knownRoutes are the status server paths kept as distinct labels.
var knownRoutes = map[string]bool{
	"/healthz":         true,
	"/readyz":          true,
	"/metrics":         true,
	"/api/v1/progress": true,
	"/api/v1/summary":  true,
	"/api/v1/snapshot": true,
}

// normalizeRoute maps a request path to a bounded label value.
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
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
