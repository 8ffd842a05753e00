package middleware

import (
	"crypto/subtle"
	"net/http"
)

const HeaderMetricsKey = "X-Metrics-Key"

// MetricsKey guards /metrics with a shared scrape key. An empty key leaves
// the endpoint open, which is meant for dev and private networks.
func MetricsKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderMetricsKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
