package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Handler is what the consumer calls for every delivery. Returning an error
// that implements Permanent() bool == true dead-letters the message at once.
type Handler interface {
	Handle(ctx context.Context, routingKey string, body []byte) error
}

type ConsumerConfig struct {
	URL      string
	Topology Topology
	Prefetch int
	Workers  int
	Tag      string
}

type Consumer struct {
	cfg     ConsumerConfig
	handler Handler
	lg      zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, h Handler, lg zerolog.Logger) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Consumer{
		cfg:     cfg,
		handler: h,
		lg:      lg.With().Str("component", "rabbitmq_consumer").Logger(),
	}
}

// Run reconnects with backoff until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("nil handler")
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.lg.Info().Msg("consumer stopped")
			return nil
		}
		if isPreconditionFailed(err) {
			return fmt.Errorf("topology mismatch, recreate queues: %w", err)
		}
		c.lg.Warn().Err(err).Dur("backoff", backoff).Msg("consumer session ended; reconnecting")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Consumer) session(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if err := DeclareConsumerTopology(ch, c.cfg.Topology); err != nil {
		return err
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	deliveries, err := ch.Consume(c.cfg.Topology.Queue, c.cfg.Tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.lg.Info().
		Str("exchange", c.cfg.Topology.Exchange).
		Str("queue", c.cfg.Topology.Queue).
		Strs("bind_keys", c.cfg.Topology.BindKeys).
		Int("workers", c.cfg.Workers).
		Msg("consumer ready")

	pool := newWorkerPool(c.cfg.Workers)
	defer pool.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			pool.Submit(func() { c.process(ctx, d) })
		}
	}
}

// process acks on success. Temporary failures get one redelivery; anything
// else goes to the DLX.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	err := c.handler.Handle(ctx, d.RoutingKey, d.Body)
	lg := c.lg.With().Str("routing_key", d.RoutingKey).Dur("took", time.Since(start)).Logger()

	switch {
	case err == nil:
		_ = d.Ack(false)
		lg.Debug().Msg("message processed")
	case !isPermanent(err) && !d.Redelivered:
		_ = d.Nack(false, true)
		lg.Warn().Err(err).Msg("handle failed; requeued")
	default:
		_ = d.Nack(false, false)
		lg.Error().Err(err).Bool("redelivered", d.Redelivered).Msg("handle failed; dead-lettered")
	}
}

func isPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}

func isPreconditionFailed(err error) bool {
	var ae *amqp.Error
	return errors.As(err, &ae) && ae.Code == amqp.PreconditionFailed
}
