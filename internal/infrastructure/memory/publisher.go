package memory

import (
	"context"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/logger"
)

// NoopPublisher logs events instead of sending them. Used when neither the
// broker nor SMTP is configured (local dev, tests).
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) PublishRegistrationOTP(ctx context.Context, evt auth.RegistrationOTPEvent) error {
	logger.WithCtx(ctx).Info().
		Str("email", evt.Email).
		Str("otp", evt.Code).
		Time("expires_at", evt.ExpiresAt).
		Msg("[noop-pub] registration otp")
	return nil
}

func (p *NoopPublisher) PublishPasswordReset(ctx context.Context, evt auth.PasswordResetEvent) error {
	logger.WithCtx(ctx).Info().
		Str("user_id", evt.UserID).
		Str("email", evt.Email).
		Str("url", evt.URL).
		Msg("[noop-pub] password reset")
	return nil
}

func (p *NoopPublisher) PublishDeviceChangeDecided(ctx context.Context, evt device.DecisionEvent) error {
	logger.WithCtx(ctx).Info().
		Str("request_id", evt.RequestID).
		Str("account_id", evt.AccountID).
		Str("status", evt.Status).
		Msg("[noop-pub] device change decided")
	return nil
}
