// metrics.go — Prometheus HTTP метрики Rain backend.
// Регистрирует метрики: rb_http_requests_total, rb_http_request_duration_seconds.
// Нормализация путей ограничивает кардинальность лейблов.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rb_http_requests_total",
			Help: "Общее количество HTTP-запросов к Rain backend",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rb_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Rain backend в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет идентификаторы в пути на плейсхолдеры:
//
//	/api/issues/ISSUE-1                  → /api/issues/{issue_code}
//	/api/files/v1/<hash>/files/<id>      → /api/files/v1/{bundle_hash}/files/{file_id}
//	/api/log/v2/<hash>/search            → /api/log/v2/{bundle_hash}/search
//
// Неизвестные пути сводятся к "other".
func normalizePath(path string) string {
	switch path {
	case "/healthz", "/health/live", "/health/ready", "/metrics", "/api/uploads":
		return path
	}

	segs := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(segs) == 3 && segs[0] == "api" && segs[1] == "issues":
		return "/api/issues/{issue_code}"
	case len(segs) == 6 && segs[0] == "api" && segs[1] == "files" && segs[2] == "v1" && segs[4] == "files":
		return "/api/files/v1/{bundle_hash}/files/{file_id}"
	case len(segs) == 5 && segs[0] == "api" && segs[1] == "log" && segs[2] == "v2" && segs[4] == "search":
		return "/api/log/v2/{bundle_hash}/search"
	}
	return "other"
}
