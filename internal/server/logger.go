package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/woozymasta/geobbox/internal/metrics"

	"github.com/rs/zerolog/log"
)

// RequestLogger is a middleware to log HTTP requests and record their metrics.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		metrics.ObserveRequest(r.Method, route(r.URL.Path), ww.statusCode, duration)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.statusCode).
			Str("ip", r.RemoteAddr).
			Dur("duration", duration).
			Msg("Request processed")
	})
}

// route reduces a request path to a pattern for metric labels.
func route(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case path == "/api/datasets" || path == "/metrics":
		return path
	case len(parts) == 3 && parts[0] == "datasets" && (parts[2] == "search" || parts[2] == "coverage.webp"):
		return "/datasets/{name}/" + parts[2]
	case len(parts) == 4 && parts[0] == "datasets" && parts[2] == "features":
		return "/datasets/{name}/features/{offset}"
	}

	return "other"
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing to the underlying response writer.
func (w *responseWriterWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
