package bootstrap

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/audit"
	"github.com/baechuer/lms-auth-service/internal/config"
	"github.com/baechuer/lms-auth-service/internal/contracts"
	"github.com/baechuer/lms-auth-service/internal/domain"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/mail"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/memory"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/redis"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/security"
	"github.com/baechuer/lms-auth-service/internal/logger"
	"github.com/baechuer/lms-auth-service/internal/notifier"
	http_handlers "github.com/baechuer/lms-auth-service/internal/transport/http/handlers"
	"github.com/baechuer/lms-auth-service/internal/transport/http/middleware"
	"github.com/baechuer/lms-auth-service/internal/transport/http/response"
	"github.com/baechuer/lms-auth-service/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

// Server is the built HTTP server plus how long main may wait for it to drain.
type Server struct {
	HTTP            *http.Server
	ShutdownTimeout time.Duration
}

func NewServer() (*Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB   func(dsn string, debug bool) (*sql.DB, error)
	Migrate func(dsn string) error

	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(url string, t rabbitmq.Topology) (Publisher, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

// Publisher is every event the api emits.
type Publisher interface {
	auth.EventPublisher
	device.DecisionPublisher
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	fail := func(err error) (*Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}
	checks := map[string]http_handlers.CheckFunc{}

	// 1) security
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)
	codes := security.NewNumericCodeGenerator(cfg.OTPLength)

	// 2) accounts + device change requests
	var (
		accounts auth.AccountRepo
		requests device.RequestRepo
	)
	if cfg.DBAddr != "" {
		if cfg.MigrateOnStart && deps.Migrate != nil {
			if err := deps.Migrate(cfg.DBAddr); err != nil {
				return fail(err)
			}
			logger.Logger.Info().Msg("migrations applied")
		}

		db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug)
		if err != nil {
			return fail(err)
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })
		checks["postgres"] = db.PingContext

		pgAccounts := postgres.NewAccountRepo(db)
		if err := postgres.SeedAdmin(context.Background(), pgAccounts, hasher, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			return fail(err)
		}
		accounts = pgAccounts
		requests = postgres.NewDeviceRequestRepo(db)
	} else {
		logger.Logger.Warn().Msg("DB_ADDR not set; using in-memory accounts")
		memAccounts := memory.NewAccountRepo()
		memory.SeedAccounts(context.Background(), memAccounts, hasher)
		accounts = memAccounts
		requests = memory.NewDeviceRequestRepo()
	}

	// 3) redis (best-effort in dev)
	var redisCli *redis.Client
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.Ping(ctx)
		cancel()

		switch {
		case err == nil:
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			checks["redis"] = c.Ping
		case cfg.IsDev():
			logger.Logger.Warn().Err(err).Msg("redis unavailable; using in-memory stores")
			_ = c.Close()
		default:
			_ = c.Close()
			return fail(err)
		}
	}

	var (
		sessions auth.SessionStore
		ott      auth.OneTimeTokenStore
		pending  auth.PendingRegistrationStore
	)
	if redisCli != nil {
		sessions = redis.NewSessionStore(redisCli)
		ott = redis.NewOneTimeTokenStore(redisCli)
		pending = redis.NewPendingRegistrationStore(redisCli)
	} else {
		sessions = memory.NewSessionStore()
		ott = memory.NewOneTimeTokenStore()
		pending = memory.NewPendingRegistrationStore()
	}

	// 4) publisher
	pub, err := newPublisher(deps, cfg)
	if err != nil {
		return fail(err)
	}
	if c, ok := pub.(interface{ Close() error }); ok {
		cleanupFns = append(cleanupFns, func() { _ = c.Close() })
	}
	if h, ok := pub.(interface{ Healthy() bool }); ok {
		checks["rabbitmq"] = func(context.Context) error {
			if !h.Healthy() {
				return domain.ErrRabbitUnavailable(nil)
			}
			return nil
		}
	}

	// 5) services
	auditLog := audit.New(logger.Logger)

	deviceSvc := device.NewService(accounts, requests, pub, device.Policy{
		AllowReResolve: cfg.DeviceChangeAllowReResolve,
	}).WithAudit(auditLog.Record)

	authSvc := auth.NewService(auth.Deps{
		Accounts:  accounts,
		Devices:   deviceSvc,
		Hasher:    hasher,
		Signer:    signer,
		Sessions:  sessions,
		OTT:       ott,
		Pending:   pending,
		Codes:     codes,
		Publisher: pub,
	}, auth.Config{
		AccessTTL:             cfg.AccessTokenTTL,
		RefreshTTL:            cfg.RefreshTokenTTL,
		PasswordResetBaseURL:  cfg.PasswordResetBaseURL,
		PasswordResetTokenTTL: cfg.PasswordResetTokenTTL,
		OTPTTL:                cfg.OTPTTL,
		OTPMaxAttempts:        cfg.OTPMaxAttempts,
		MinPasswordLength:     cfg.MinPasswordLength,
	}).WithAudit(auditLog.Record)

	// 6) handlers + middleware
	authH := http_handlers.NewAuthHandler(authSvc, cfg.RefreshTokenTTL, cfg.CookieSecure)
	deviceH := http_handlers.NewDeviceChangeHandler(authSvc, deviceSvc)
	healthH := http_handlers.NewHealthHandler(checks)

	var principals middleware.AccountReader = accounts
	if redisCli != nil {
		principals = redis.NewPrincipalCache(accounts, redisCli, cfg.PrincipalCacheTTL)
	}
	authMW := middleware.Auth(signer, principals, response.WriteError)
	adminMW := middleware.RequireAtLeast(string(domain.RoleAdmin), response.WriteError)

	// rate limit: redis when shared state exists, otherwise per process
	var fwLimiter *redis.FixedWindowLimiter
	if redisCli != nil {
		fwLimiter = redis.NewFixedWindowLimiter(redisCli)
	}
	rl := func(key string, limit int, window time.Duration) func(http.Handler) http.Handler {
		fw := middleware.FixedWindowConfig{RouteKey: key, Limit: limit, Window: window}
		if fwLimiter == nil {
			return middleware.RateLimitInProcess(fw, response.WriteError)
		}
		return middleware.RateLimitFixedWindow(fwLimiter, fw, response.WriteError)
	}
	window := cfg.RateLimitWindow

	// 7) router
	newRouter := deps.NewRouter
	if newRouter == nil {
		newRouter = router.New
	}
	mux, err := newRouter(router.Deps{
		Health:   healthH,
		Auth:     authH,
		Devices:  deviceH,
		AuthMW:   authMW,
		AdminMW:  adminMW,
		CookieMW: middleware.CookieOrigin(cfg.CORSOrigins, response.WriteError),

		RLSignup:       rl("auth.signup", cfg.SignupRateLimit, window),
		RLLogin:        rl("auth.login", cfg.LoginRateLimit, window),
		RLRefresh:      rl("auth.refresh", 3*cfg.LoginRateLimit, window),
		RLPassword:     rl("auth.password", cfg.SignupRateLimit, 10*window),
		RLDeviceChange: rl("auth.device_change", cfg.SignupRateLimit, window),
		RLAdmin:        rl("admin.actions", 60, window),

		TrustProxy:  cfg.TrustProxy,
		CORSOrigins: cfg.CORSOrigins,
		HSTS:        cfg.CookieSecure,
		MetricsKey:  cfg.MetricsKey,
	})
	if err != nil {
		return fail(err)
	}

	// 8) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return &Server{HTTP: srv, ShutdownTimeout: cfg.ShutdownTimeout}, cleanup, nil
}

// newPublisher prefers rabbitmq, then in-process mail delivery, then noop.
// A broker failure is fatal outside dev.
func newPublisher(deps Deps, cfg *config.Config) (Publisher, error) {
	if cfg.RabbitURL != "" && deps.NewPublisher != nil {
		pub, err := deps.NewPublisher(cfg.RabbitURL, rabbitmq.Topology{
			Exchange: cfg.RabbitExchange,
			Queue:    cfg.NotifierQueue,
			BindKeys: []string{contracts.NotifierBindKey},
		})
		if err == nil {
			return pub, nil
		}
		if !cfg.IsDev() {
			return nil, err
		}
		logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; falling back")
	}

	if cfg.SMTPHost != "" {
		sender := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			TLS:      cfg.SMTPTLS,
		}, logger.Logger)
		logger.Logger.Info().Str("smtp_host", cfg.SMTPHost).Msg("delivering mail in-process")
		return notifier.NewDirectPublisher(notifier.NewHandler(sender, logger.Logger)), nil
	}

	logger.Logger.Warn().Msg("no broker or smtp configured; notifications are dropped")
	return memory.NewNoopPublisher(), nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		Migrate:    postgres.MigrateUp,
		NewRedis:   redis.New,
		NewPublisher: func(url string, t rabbitmq.Topology) (Publisher, error) {
			return rabbitmq.NewPublisher(url, t)
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
