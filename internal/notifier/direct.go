package notifier

import (
	"context"
	"encoding/json"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/contracts"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

// DirectPublisher mails events in-process. It stands in for RabbitMQ in
// single-binary dev setups that still have an SMTP server.
type DirectPublisher struct {
	h *Handler
}

func NewDirectPublisher(h *Handler) *DirectPublisher {
	return &DirectPublisher{h: h}
}

func (p *DirectPublisher) PublishRegistrationOTP(ctx context.Context, evt auth.RegistrationOTPEvent) error {
	return p.dispatch(ctx, contracts.RKRegistrationOTP, contracts.RegistrationOTPPayload{
		Email: evt.Email, Code: evt.Code, ExpiresAt: evt.ExpiresAt,
	})
}

func (p *DirectPublisher) PublishPasswordReset(ctx context.Context, evt auth.PasswordResetEvent) error {
	return p.dispatch(ctx, contracts.RKPasswordReset, contracts.PasswordResetPayload{
		UserID: evt.UserID, Email: evt.Email, URL: evt.URL,
	})
}

func (p *DirectPublisher) PublishDeviceChangeDecided(ctx context.Context, evt device.DecisionEvent) error {
	return p.dispatch(ctx, contracts.RKDeviceChangeDecided, contracts.DeviceChangeDecidedPayload{
		RequestID:   evt.RequestID,
		AccountID:   evt.AccountID,
		Email:       evt.Email,
		NewDeviceID: evt.NewDeviceID,
		Status:      evt.Status,
		ReviewedBy:  evt.ReviewedBy,
		ReviewedAt:  evt.ReviewedAt,
	})
}

// dispatch goes through the same JSON path as the queue so both routes
// render identical mail.
func (p *DirectPublisher) dispatch(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ErrInternal(err)
	}
	if err := p.h.Handle(ctx, routingKey, body); err != nil {
		return domain.Wrap(domain.KindInfrastructure, "mail_unavailable", "mail delivery failed", err)
	}
	return nil
}
