package router

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/lms-auth-service/internal/transport/http/middleware"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	Signup(w http.ResponseWriter, r *http.Request)
	VerifySignup(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)

	PasswordForgot(w http.ResponseWriter, r *http.Request)
	PasswordReset(w http.ResponseWriter, r *http.Request)
	PasswordChange(w http.ResponseWriter, r *http.Request)

	AdminLogin(w http.ResponseWriter, r *http.Request)
	CreateAdmin(w http.ResponseWriter, r *http.Request)
}

type DeviceChangeHandler interface {
	SubmitWithCredentials(w http.ResponseWriter, r *http.Request)
	SubmitMine(w http.ResponseWriter, r *http.Request)
	ListMine(w http.ResponseWriter, r *http.Request)

	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Resolve(w http.ResponseWriter, r *http.Request)
}

type Middleware = func(http.Handler) http.Handler

type Deps struct {
	Health  HealthHandler
	Auth    AuthHandler
	Devices DeviceChangeHandler

	AuthMW  Middleware
	AdminMW Middleware

	// CookieMW guards routes that accept the refresh cookie; optional.
	CookieMW Middleware

	// Optional per-route limiters; nil means unlimited.
	RLSignup       Middleware
	RLLogin        Middleware
	RLRefresh      Middleware
	RLPassword     Middleware
	RLDeviceChange Middleware
	RLAdmin        Middleware

	// TrustProxy enables chi's RealIP so X-Forwarded-For feeds rate limit keys.
	TrustProxy bool

	CORSOrigins []string
	HSTS        bool
	MetricsKey  string
}

func New(deps Deps) (http.Handler, error) {
	switch {
	case deps.Health == nil:
		return nil, errors.New("router: nil Health handler")
	case deps.Auth == nil:
		return nil, errors.New("router: nil Auth handler")
	case deps.Devices == nil:
		return nil, errors.New("router: nil DeviceChange handler")
	case deps.AuthMW == nil:
		return nil, errors.New("router: nil Auth middleware")
	case deps.AdminMW == nil:
		return nil, errors.New("router: nil Admin middleware")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(deps.HSTS))
	r.Use(middleware.CORS(deps.CORSOrigins))
	r.Use(middleware.AccessLog)
	r.Use(middleware.Metrics)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.With(middleware.MetricsKey(deps.MetricsKey)).Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth/v1", func(r chi.Router) {
		// --- public ---
		r.With(opt(deps.RLSignup)...).Post("/signup", deps.Auth.Signup)
		r.With(opt(deps.RLSignup)...).Post("/signup/verify", deps.Auth.VerifySignup)
		r.With(opt(deps.RLLogin)...).Post("/login", deps.Auth.Login)
		r.With(opt(deps.RLRefresh, deps.CookieMW)...).Post("/refresh", deps.Auth.Refresh)
		r.With(opt(deps.CookieMW)...).Post("/logout", deps.Auth.Logout)
		r.With(opt(deps.RLPassword)...).Post("/password/forgot", deps.Auth.PasswordForgot)
		r.With(opt(deps.RLPassword)...).Post("/password/reset", deps.Auth.PasswordReset)
		r.With(opt(deps.RLDeviceChange)...).Post("/device-change-requests", deps.Devices.SubmitWithCredentials)

		// --- bearer ---
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMW)
			r.Get("/me", deps.Auth.Me)
			r.With(opt(deps.RLPassword)...).Post("/password/change", deps.Auth.PasswordChange)
			r.With(opt(deps.RLDeviceChange)...).Post("/me/device-change-requests", deps.Devices.SubmitMine)
			r.Get("/me/device-change-requests", deps.Devices.ListMine)
		})

		// --- admin ---
		r.Route("/admin", func(r chi.Router) {
			r.With(opt(deps.RLLogin)...).Post("/login", deps.Auth.AdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMW)
				r.Use(deps.AdminMW)
				r.Use(opt(deps.RLAdmin)...)

				r.Post("/admins", deps.Auth.CreateAdmin)
				r.Get("/device-change-requests", deps.Devices.List)
				r.Get("/device-change-requests/{id}", deps.Devices.Get)
				r.Put("/device-change-requests/{id}", deps.Devices.Resolve)
			})
		})
	})

	return r, nil
}

// opt drops nil middleware so optional deps can be passed straight through.
func opt(mws ...Middleware) []func(http.Handler) http.Handler {
	var out []func(http.Handler) http.Handler
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}
