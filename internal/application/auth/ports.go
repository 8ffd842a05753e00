package auth

import (
	"context"
	"time"

	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

/*
AccountRepo
-----------
Persistence port for accounts.
BindDevice is a compare-and-swap: it only writes when the stored version
equals expectedVersion and returns ErrDeviceBindingConflict otherwise.
*/
type AccountRepo interface {
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByID(ctx context.Context, id string) (domain.Account, error)
	Create(ctx context.Context, a domain.Account) (domain.Account, error)

	BindDevice(ctx context.Context, accountID, deviceID string, expectedVersion int64) (domain.Account, error)
	UpdatePasswordHash(ctx context.Context, accountID string, newHash string) error
	TouchLastLogin(ctx context.Context, accountID string, at time.Time) error
}

/*
DeviceGuard
-----------
The device authorization workflow as seen from login.
Implemented by device.Service.
*/
type DeviceGuard interface {
	Check(ctx context.Context, acct domain.Account, claimedDeviceID string) (device.Decision, error)
	LatestForAccount(ctx context.Context, accountID string) (*domain.DeviceChangeRequest, error)
	Submit(ctx context.Context, in device.SubmitInput) (domain.DeviceChangeRequest, error)
	List(ctx context.Context, f domain.DeviceChangeFilter) ([]domain.DeviceChangeRequest, int, error)
}

/*
PasswordHasher
--------------
Abstracts bcrypt.
*/
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error // nil if match
}

/*
TokenSigner
-----------
Issues and verifies access tokens (JWT).
Used by service + auth middleware.
*/
type TokenClaims struct {
	UserID string
	Role   string
	Exp    time.Time
}

type TokenSigner interface {
	SignAccessToken(userID string, role string, ttl time.Duration) (string, error)
	VerifyAccessToken(token string) (TokenClaims, error)
}

/*
SessionStore
------------
Refresh token management. The account row never stores the token;
the store keeps the token -> account mapping.
*/
type SessionStore interface {
	CreateRefreshToken(ctx context.Context, userID string, ttl time.Duration) (token string, err error)
	RotateRefreshToken(ctx context.Context, oldToken string, ttl time.Duration) (newToken string, err error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID string) error
	GetUserIDByRefreshToken(ctx context.Context, token string) (string, error)
}

/*
OneTimeTokenStore
-----------------
Opaque one-time tokens (password reset). Only a hash of the token is kept.
*/
type OneTimeTokenKind string

const (
	TokenPasswordReset OneTimeTokenKind = "password_reset"
)

type OneTimeTokenStore interface {
	Save(ctx context.Context, kind OneTimeTokenKind, token string, userID string, ttl time.Duration) error
	Consume(ctx context.Context, kind OneTimeTokenKind, token string) (userID string, err error)
}

/*
PendingRegistrationStore
------------------------
Holds signups until the emailed code is confirmed. Keyed by normalized email;
Put replaces whatever was there. Get returns ErrOTPNotFound when absent.
*/
type PendingRegistrationStore interface {
	Put(ctx context.Context, p domain.PendingRegistration, ttl time.Duration) error
	Get(ctx context.Context, email string) (domain.PendingRegistration, error)
	Delete(ctx context.Context, email string) error
	IncrementAttempts(ctx context.Context, email string) (int, error)
}

/*
CodeGenerator
-------------
Produces the numeric codes mailed at signup.
*/
type CodeGenerator interface {
	NewCode() (string, error)
}

/*
EventPublisher
--------------
Publishes events to RabbitMQ. The notifier consumes them and sends mail;
this service never talks SMTP on the request path.
*/
type EventPublisher interface {
	PublishRegistrationOTP(ctx context.Context, evt RegistrationOTPEvent) error
	PublishPasswordReset(ctx context.Context, evt PasswordResetEvent) error
}

type RegistrationOTPEvent struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

type PasswordResetEvent struct {
	UserID string
	Email  string
	URL    string
}
