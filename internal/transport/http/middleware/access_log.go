package middleware

import (
	"net/http"
	"time"

	"github.com/baechuer/lms-auth-service/internal/logger"
)

// AccessLog writes one line per request. RequestID must run first.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		lg := logger.WithCtx(r.Context())
		evt := lg.Info()
		if sw.status >= http.StatusInternalServerError {
			evt = lg.Warn()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}
