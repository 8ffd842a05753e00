// Package notifier turns auth events into emails. It runs behind the
// RabbitMQ consumer in cmd/notifier, or inline through DirectPublisher.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/baechuer/lms-auth-service/internal/contracts"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/mail"
)

var messagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lms_notifier",
		Name:      "messages_total",
		Help:      "Messages handled by the notifier",
	},
	[]string{"routing_key", "result"}, // sent, failed, dropped
)

type Sender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// badPayload is never retried.
type badPayload struct{ err error }

func (e badPayload) Error() string   { return "bad payload: " + e.err.Error() }
func (e badPayload) Unwrap() error   { return e.err }
func (e badPayload) Permanent() bool { return true }

type Handler struct {
	sender Sender
	lg     zerolog.Logger
}

func NewHandler(sender Sender, lg zerolog.Logger) *Handler {
	return &Handler{sender: sender, lg: lg.With().Str("component", "notifier").Logger()}
}

func (h *Handler) Handle(ctx context.Context, routingKey string, body []byte) error {
	msg, err := h.compose(routingKey, body)
	if err != nil {
		messagesTotal.WithLabelValues(routingKey, "failed").Inc()
		return err
	}
	if msg == nil {
		messagesTotal.WithLabelValues(routingKey, "dropped").Inc()
		return nil
	}
	return h.deliver(ctx, routingKey, *msg)
}

// compose returns nil, nil for messages that should be acked and ignored.
func (h *Handler) compose(routingKey string, body []byte) (*mail.Message, error) {
	var (
		msg mail.Message
		err error
	)
	switch routingKey {
	case contracts.RKRegistrationOTP:
		var p contracts.RegistrationOTPPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, badPayload{err}
		}
		msg, err = registrationOTPMail(p)

	case contracts.RKPasswordReset:
		var p contracts.PasswordResetPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, badPayload{err}
		}
		msg, err = passwordResetMail(p)

	case contracts.RKDeviceChangeDecided:
		var p contracts.DeviceChangeDecidedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, badPayload{err}
		}
		msg, err = deviceChangeDecidedMail(p)

	default:
		h.lg.Warn().Str("routing_key", truncate(routingKey, 100)).Msg("unknown routing key; dropping")
		return nil, nil
	}
	if err != nil {
		return nil, badPayload{err}
	}

	if strings.TrimSpace(msg.To) == "" {
		h.lg.Warn().Str("routing_key", routingKey).Msg("event without recipient; dropping")
		return nil, nil
	}
	return &msg, nil
}

func (h *Handler) deliver(ctx context.Context, routingKey string, msg mail.Message) error {
	if err := h.sender.Send(ctx, msg); err != nil {
		messagesTotal.WithLabelValues(routingKey, "failed").Inc()
		return fmt.Errorf("send %s: %w", routingKey, err)
	}
	messagesTotal.WithLabelValues(routingKey, "sent").Inc()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
