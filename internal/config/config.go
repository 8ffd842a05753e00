package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration
	CookieSecure     bool
	TrustProxy       bool
	CORSOrigins      []string
	MetricsKey       string

	//Auth / Security
	JWTSecret         string
	JWTIssuer         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	BcryptCost        int
	MinPasswordLength int

	// Signup codes
	OTPLength      int
	OTPTTL         time.Duration
	OTPMaxAttempts int

	// Password reset (sent via the notifier)
	PasswordResetBaseURL  string
	PasswordResetTokenTTL time.Duration

	// Device change review
	DeviceChangeAllowReResolve bool

	// Infrastructure. Empty DB/Redis/Rabbit addresses fall back to in-process
	// adapters, which is only allowed in dev.
	DBAddr         string
	DBDebug        bool
	MigrateOnStart bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RabbitURL      string
	RabbitExchange string

	// PrincipalCacheTTL bounds how long a DB-side lock can go unnoticed.
	PrincipalCacheTTL time.Duration

	// Rate limits (requests per window per client)
	LoginRateLimit  int
	SignupRateLimit int
	RateLimitWindow time.Duration

	// Bootstrap admin for a fresh database
	SeedAdminEmail    string
	SeedAdminPassword string

	// Notifier
	NotifierQueue string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string
	SMTPTLS       bool
}

// LoadDotEnv reads .env when present. Real environment variables win.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		JWTIssuer:      getEnv("JWT_ISSUER", "lms-auth"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "lms.auth.events"),
		NotifierQueue:  getEnv("NOTIFIER_QUEUE", "lms.notifier.queue"),
		SMTPFrom:       getEnv("SMTP_FROM", "no-reply@lms.local"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", 15 * time.Minute, &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", 7 * 24 * time.Hour, &cfg.RefreshTokenTTL},
		{"OTP_TTL", 10 * time.Minute, &cfg.OTPTTL},
		{"PASSWORD_RESET_TOKEN_TTL", 15 * time.Minute, &cfg.PasswordResetTokenTTL},
		{"HTTP_READ_TIMEOUT", 10 * time.Second, &cfg.HTTPReadTimeout},
		{"HTTP_WRITE_TIMEOUT", 30 * time.Second, &cfg.HTTPWriteTimeout},
		{"HTTP_IDLE_TIMEOUT", time.Minute, &cfg.HTTPIdleTimeout},
		{"SHUTDOWN_TIMEOUT", 15 * time.Second, &cfg.ShutdownTimeout},
		{"RATE_LIMIT_WINDOW", time.Minute, &cfg.RateLimitWindow},
		{"PRINCIPAL_CACHE_TTL", 30 * time.Second, &cfg.PrincipalCacheTTL},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"BCRYPT_COST", 12, &cfg.BcryptCost},
		{"MIN_PASSWORD_LENGTH", 8, &cfg.MinPasswordLength},
		{"OTP_LENGTH", 4, &cfg.OTPLength},
		{"OTP_MAX_ATTEMPTS", 5, &cfg.OTPMaxAttempts},
		{"LOGIN_RATE_LIMIT", 10, &cfg.LoginRateLimit},
		{"SIGNUP_RATE_LIMIT", 5, &cfg.SignupRateLimit},
		{"SMTP_PORT", 587, &cfg.SMTPPort},
		{"REDIS_DB", 0, &cfg.RedisDB},
	}
	for _, i := range ints {
		if *i.dst, err = getInt(i.key, i.def); err != nil {
			return nil, err
		}
	}
	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		return nil, fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", cfg.OTPLength)
	}

	bools := []struct {
		key string
		def bool
		dst *bool
	}{
		{"DEVICE_CHANGE_ALLOW_RERESOLVE", false, &cfg.DeviceChangeAllowReResolve},
		{"COOKIE_SECURE", false, &cfg.CookieSecure},
		{"TRUST_PROXY", false, &cfg.TrustProxy},
		{"DB_DEBUG", false, &cfg.DBDebug},
		{"MIGRATE_ON_START", true, &cfg.MigrateOnStart},
		{"SMTP_TLS", true, &cfg.SMTPTLS},
	}
	for _, b := range bools {
		if *b.dst, err = getBool(b.key, b.def); err != nil {
			return nil, err
		}
	}

	// Appended verbatim with the token, so it must end in `token=`.
	cfg.PasswordResetBaseURL = getEnv("PASSWORD_RESET_BASE_URL", "http://localhost:3000/reset-password?token=")
	if !strings.HasSuffix(cfg.PasswordResetBaseURL, "token=") {
		return nil, fmt.Errorf("PASSWORD_RESET_BASE_URL must end with `token=`")
	}

	cfg.CORSOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	cfg.MetricsKey = os.Getenv("METRICS_API_KEY")

	cfg.DBAddr = os.Getenv("DB_ADDR")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RabbitURL = os.Getenv("RABBIT_URL")
	cfg.SeedAdminEmail = os.Getenv("SEED_ADMIN_EMAIL")
	cfg.SeedAdminPassword = os.Getenv("SEED_ADMIN_PASSWORD")

	// Outside dev the service cannot operate without its backing stores.
	// Fail fast here instead of starting on in-memory state.
	if !cfg.IsDev() {
		if cfg.DBAddr == "" {
			return nil, fmt.Errorf("missing required env var: DB_ADDR")
		}
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("missing required env var: REDIS_ADDR")
		}
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("missing required env var: RABBIT_URL")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "test"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid duration for %s: %q must be positive", key, v)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}

// splitList parses a comma separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
