package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology describes the exchange the api publishes to and the queue the
// notifier drains. Failed deliveries go to <exchange>.dlx -> <queue>.dlq.
type Topology struct {
	Exchange string
	Queue    string
	BindKeys []string
}

func (t Topology) DLX() string { return t.Exchange + ".dlx" }
func (t Topology) DLQ() string { return t.Queue + ".dlq" }

type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

func declareExchange(ch declarer, name string) error {
	if err := ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare (%s): %w", name, err)
	}
	return nil
}

// DeclareConsumerTopology is idempotent; running it from both binaries is fine.
func DeclareConsumerTopology(ch declarer, t Topology) error {
	if err := declareExchange(ch, t.Exchange); err != nil {
		return err
	}
	if err := declareExchange(ch, t.DLX()); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(t.DLQ(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("dlq declare: %w", err)
	}
	if err := ch.QueueBind(t.DLQ(), "#", t.DLX(), false, nil); err != nil {
		return fmt.Errorf("dlq bind: %w", err)
	}

	args := amqp.Table{"x-dead-letter-exchange": t.DLX()}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, k := range t.BindKeys {
		if err := ch.QueueBind(t.Queue, k, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind (%s): %w", k, err)
		}
	}
	return nil
}
