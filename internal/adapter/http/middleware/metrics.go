package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iho/stockledger/internal/infrastructure/metrics"
)

// Metrics returns middleware that records HTTP metrics on m.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPInFlight.Inc()
			defer m.HTTPInFlight.Dec()

			wrapped := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type metricsRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

const entitiesPrefix = "/api/v1/entities/"

// normalizePath replaces entity IDs with :id to bound label cardinality.
// /api/v1/entities/01ABC/balance -> /api/v1/entities/:id/balance
func normalizePath(path string) string {
	rest, ok := strings.CutPrefix(path, entitiesPrefix)
	if !ok || rest == "" {
		return path
	}

	id, suffix, hasSuffix := strings.Cut(rest, "/")
	if id == "low-balance" {
		return path
	}
	if hasSuffix {
		return entitiesPrefix + ":id/" + suffix
	}
	return entitiesPrefix + ":id"
}
