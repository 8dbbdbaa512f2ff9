package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// requestInfo collects what inner handlers learn about a request for the
// access log line
type requestInfo struct {
	student string
	method  string
}

type requestInfoKey struct{}

// annotateRequest records the resolved student for the access log
func annotateRequest(ctx context.Context, student, method string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.student = student
		info.method = method
	}
}

// LogRequest logs one structured line per HTTP request and records HTTP metrics
func LogRequest(logger *slog.Logger, trustProxy bool) mux.MiddlewareFunc {
	log := logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			metrics.HTTPActiveRequests.Inc()
			defer metrics.HTTPActiveRequests.Dec()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			info := &requestInfo{}
			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

			duration := time.Since(start)
			path := routeTemplate(r)
			metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.HTTPDuration.WithLabelValues(r.Method, path).Observe(float64(duration.Milliseconds()))

			// Skip logging health checks and static files to reduce noise
			if r.URL.Path == "/health" || strings.HasPrefix(r.URL.Path, "/static/") {
				return
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"bytes", wrapped.written,
				"client_ip", ClientIP(r, trustProxy),
				"user_agent", r.UserAgent(),
			}
			if info.student != "" {
				attrs = append(attrs, "student", info.student, "auth_method", info.method)
			}

			level := slog.LevelInfo
			if wrapped.statusCode >= 500 {
				level = slog.LevelError
			} else if wrapped.statusCode >= 400 {
				level = slog.LevelWarn
			}
			log.Log(r.Context(), level, "HTTP request", attrs...)
		})
	}
}

// routeTemplate returns the matched mux route so token paths do not
// explode metric cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
