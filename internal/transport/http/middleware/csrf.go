package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/baechuer/lms-auth-service/internal/domain"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/security"
)

// CookieOrigin rejects cookie-authenticated writes from origins outside
// allowed. Requests without the refresh cookie (mobile apps, body tokens)
// pass untouched, as does everything when allowed is empty.
func CookieOrigin(allowed []string, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	hosts := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts[strings.ToLower(u.Host)] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(hosts) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := security.ReadRefreshToken(r); err != nil {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = r.Header.Get("Referer")
			}
			u, err := url.Parse(origin)
			if origin == "" || err != nil {
				writeErr(w, r, domain.WithMeta(domain.ErrForbidden(), map[string]string{"reason": "origin_required"}))
				return
			}
			if _, ok := hosts[strings.ToLower(u.Host)]; !ok {
				writeErr(w, r, domain.WithMeta(domain.ErrForbidden(), map[string]string{"reason": "cross_origin"}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
