package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/contracts"
	"github.com/baechuer/lms-auth-service/internal/domain"
	"github.com/baechuer/lms-auth-service/internal/logger"
	appCtx "github.com/baechuer/lms-auth-service/internal/pkg/context"
)

const confirmWait = 2 * time.Second

// Publisher sends JSON events with publisher confirms and mandatory routing.
// It declares the full notifier topology on connect so nothing published
// before the notifier first starts is lost.
type Publisher struct {
	url      string
	topology Topology

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return

	// send is swapped in tests.
	send func(ctx context.Context, routingKey string, body []byte) error
}

func NewPublisher(url string, t Topology) (*Publisher, error) {
	p := &Publisher{url: url, topology: t}
	p.send = p.sendConfirmed

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetConn()
	return nil
}

// Healthy reports whether the connection is currently open.
func (p *Publisher) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed()
}

func (p *Publisher) PublishRegistrationOTP(ctx context.Context, evt auth.RegistrationOTPEvent) error {
	return p.publishJSON(ctx, contracts.RKRegistrationOTP, contracts.RegistrationOTPPayload{
		Email:     evt.Email,
		Code:      evt.Code,
		ExpiresAt: evt.ExpiresAt,
	})
}

func (p *Publisher) PublishPasswordReset(ctx context.Context, evt auth.PasswordResetEvent) error {
	return p.publishJSON(ctx, contracts.RKPasswordReset, contracts.PasswordResetPayload{
		UserID: evt.UserID,
		Email:  evt.Email,
		URL:    evt.URL,
	})
}

func (p *Publisher) PublishDeviceChangeDecided(ctx context.Context, evt device.DecisionEvent) error {
	return p.publishJSON(ctx, contracts.RKDeviceChangeDecided, contracts.DeviceChangeDecidedPayload{
		RequestID:   evt.RequestID,
		AccountID:   evt.AccountID,
		Email:       evt.Email,
		NewDeviceID: evt.NewDeviceID,
		Status:      evt.Status,
		ReviewedBy:  evt.ReviewedBy,
		ReviewedAt:  evt.ReviewedAt,
	})
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ErrInternal(fmt.Errorf("marshal %s: %w", routingKey, err))
	}
	if err := p.send(ctx, routingKey, body); err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Str("routing_key", routingKey).Msg("publish failed")
		return domain.ErrRabbitUnavailable(err)
	}
	return nil
}

// connect must be called with mu held.
func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := DeclareConsumerTopology(ch, p.topology); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) sendConfirmed(ctx context.Context, routingKey string, body []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, confirmWait)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil {
		if err := p.connect(); err != nil {
			return err
		}
	}

drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	err := p.ch.PublishWithContext(ctx, p.topology.Exchange, routingKey, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    appCtx.GetRequestID(ctx),
		Body:         body,
	})
	if err != nil {
		p.resetConn()
		return fmt.Errorf("publish: %w", err)
	}

	select {
	case ret := <-p.returnCh:
		return fmt.Errorf("unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)
	case conf := <-p.confirmCh:
		// the broker sends basic.return before the ack of the same message
		select {
		case ret := <-p.returnCh:
			return fmt.Errorf("unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)
		default:
		}
		if !conf.Ack {
			return fmt.Errorf("nack: key=%s tag=%d", routingKey, conf.DeliveryTag)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resetConn must be called with mu held.
func (p *Publisher) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
