package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

type Service struct {
	accounts AccountRepo
	devices  DeviceGuard
	hasher   PasswordHasher
	signer   TokenSigner
	sessions SessionStore
	ott      OneTimeTokenStore
	pending  PendingRegistrationStore
	codes    CodeGenerator
	pub      EventPublisher

	accessTTL  time.Duration
	refreshTTL time.Duration
	audit      func(action string, fields map[string]string)
	now        func() time.Time

	passwordResetBaseURL string // e.g. https://lms/reset-password?token=
	passwordResetTTL     time.Duration
	otpTTL               time.Duration
	otpMaxAttempts       int
	minPasswordLen       int
}

type Config struct {
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	PasswordResetBaseURL  string
	PasswordResetTokenTTL time.Duration
	OTPTTL                time.Duration
	OTPMaxAttempts        int
	MinPasswordLength     int
}

// Deps groups the ports so the constructor stays readable.
type Deps struct {
	Accounts  AccountRepo
	Devices   DeviceGuard
	Hasher    PasswordHasher
	Signer    TokenSigner
	Sessions  SessionStore
	OTT       OneTimeTokenStore
	Pending   PendingRegistrationStore
	Codes     CodeGenerator
	Publisher EventPublisher
}

func NewService(d Deps, cfg Config) *Service {
	resetTTL := cfg.PasswordResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = 15 * time.Minute
	}
	otpTTL := cfg.OTPTTL
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	maxAttempts := cfg.OTPMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	minLen := cfg.MinPasswordLength
	if minLen <= 0 {
		minLen = 8
	}
	return &Service{
		accounts: d.Accounts,
		devices:  d.Devices,
		hasher:   d.Hasher,
		signer:   d.Signer,
		sessions: d.Sessions,
		ott:      d.OTT,
		pending:  d.Pending,
		codes:    d.Codes,
		pub:      d.Publisher,
		audit:    func(string, map[string]string) {},
		now:      func() time.Time { return time.Now().UTC() },

		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,

		passwordResetBaseURL: cfg.PasswordResetBaseURL,
		passwordResetTTL:     resetTTL,
		otpTTL:               otpTTL,
		otpMaxAttempts:       maxAttempts,
		minPasswordLen:       minLen,
	}
}

// AuthTokens is the common token output for handlers/DTO mapping.
type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64  // seconds
	TokenType    string // "Bearer"
}

type LoginResult struct {
	Account domain.Account
	Tokens  AuthTokens
	// Status of the newest device change request on any device, "" if none.
	DeviceChangeRequestStatus string
}

type SignupResult struct {
	Email     string
	ExpiresAt time.Time
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// issueTokens issues an access token + refresh token for an account.
func (s *Service) issueTokens(ctx context.Context, userID, role string) (AuthTokens, error) {
	access, err := s.signer.SignAccessToken(userID, role, s.accessTTL)
	if err != nil {
		return AuthTokens{}, domain.ErrTokenSignFailed(err)
	}

	refresh, err := s.sessions.CreateRefreshToken(ctx, userID, s.refreshTTL)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) checkPasswordPolicy(pw string) error {
	if len(pw) < s.minPasswordLen {
		return domain.ErrWeakPassword("too short")
	}
	return nil
}

// newOpaqueToken returns a URL-safe opaque token.
func newOpaqueToken(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		return "", errors.New("invalid token length")
	}
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
