package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/contracts"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

type fakeAcker struct {
	mu      sync.Mutex
	acked   int
	nacked  int
	requeue []bool
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked++
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked++
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type handlerFunc func(ctx context.Context, rk string, body []byte) error

func (f handlerFunc) Handle(ctx context.Context, rk string, body []byte) error { return f(ctx, rk, body) }

type permanentErr struct{}

func (permanentErr) Error() string   { return "bad payload" }
func (permanentErr) Permanent() bool { return true }

func TestConsumer_ProcessAckNack(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		redelivered bool
		wantAck     int
		wantRequeue []bool
	}{
		{name: "success_acks", err: nil, wantAck: 1},
		{name: "temporary_first_time_requeues", err: errors.New("smtp 421"), wantRequeue: []bool{true}},
		{name: "temporary_redelivered_dead_letters", err: errors.New("smtp 421"), redelivered: true, wantRequeue: []bool{false}},
		{name: "permanent_dead_letters", err: permanentErr{}, wantRequeue: []bool{false}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acker := &fakeAcker{}
			c := NewConsumer(ConsumerConfig{}, handlerFunc(func(ctx context.Context, rk string, body []byte) error {
				return tc.err
			}), zerolog.Nop())

			c.process(context.Background(), amqp.Delivery{
				Acknowledger: acker,
				RoutingKey:   contracts.RKPasswordReset,
				Redelivered:  tc.redelivered,
			})

			assert.Equal(t, tc.wantAck, acker.acked)
			assert.Equal(t, tc.wantRequeue, acker.requeue)
		})
	}
}

func TestWorkerPool_RunsAllJobs(t *testing.T) {
	wp := newWorkerPool(3)
	var n atomic.Int32
	for i := 0; i < 50; i++ {
		wp.Submit(func() { n.Add(1) })
	}
	wp.Wait()
	assert.Equal(t, int32(50), n.Load())
}

type recordingDeclarer struct {
	exchanges []string
	queues    map[string]amqp.Table
	binds     []string
}

func (r *recordingDeclarer) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	r.exchanges = append(r.exchanges, name+":"+kind)
	return nil
}

func (r *recordingDeclarer) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if r.queues == nil {
		r.queues = map[string]amqp.Table{}
	}
	r.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (r *recordingDeclarer) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	r.binds = append(r.binds, exchange+"->"+name+"@"+key)
	return nil
}

func TestDeclareConsumerTopology(t *testing.T) {
	d := &recordingDeclarer{}
	topo := Topology{Exchange: "lms.auth.events", Queue: "lms.notifier.queue", BindKeys: []string{contracts.NotifierBindKey}}

	require.NoError(t, DeclareConsumerTopology(d, topo))

	assert.Equal(t, []string{"lms.auth.events:topic", "lms.auth.events.dlx:topic"}, d.exchanges)
	assert.Equal(t, "lms.auth.events.dlx", d.queues["lms.notifier.queue"]["x-dead-letter-exchange"])
	assert.Contains(t, d.queues, "lms.notifier.queue.dlq")
	assert.Contains(t, d.binds, "lms.auth.events->lms.notifier.queue@auth.#")
	assert.Contains(t, d.binds, "lms.auth.events.dlx->lms.notifier.queue.dlq@#")
}

type sent struct {
	key  string
	body []byte
}

func newCapturingPublisher(err error) (*Publisher, *[]sent) {
	var out []sent
	p := &Publisher{topology: Topology{Exchange: "lms.auth.events"}}
	p.send = func(ctx context.Context, rk string, body []byte) error {
		out = append(out, sent{key: rk, body: body})
		return err
	}
	return p, &out
}

func TestPublisher_RoutesEvents(t *testing.T) {
	p, out := newCapturingPublisher(nil)
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, p.PublishRegistrationOTP(ctx, auth.RegistrationOTPEvent{Email: "a@x.com", Code: "4821", ExpiresAt: at}))
	require.NoError(t, p.PublishPasswordReset(ctx, auth.PasswordResetEvent{UserID: "u1", Email: "a@x.com", URL: "http://x?token=t"}))
	require.NoError(t, p.PublishDeviceChangeDecided(ctx, device.DecisionEvent{
		RequestID: "r1", AccountID: "u1", Email: "a@x.com", NewDeviceID: "A2", Status: "approved", ReviewedBy: "adm", ReviewedAt: at,
	}))

	require.Len(t, *out, 3)
	assert.Equal(t, contracts.RKRegistrationOTP, (*out)[0].key)
	assert.Equal(t, contracts.RKPasswordReset, (*out)[1].key)
	assert.Equal(t, contracts.RKDeviceChangeDecided, (*out)[2].key)

	var decided contracts.DeviceChangeDecidedPayload
	require.NoError(t, json.Unmarshal((*out)[2].body, &decided))
	assert.Equal(t, "approved", decided.Status)
	assert.Equal(t, "A2", decided.NewDeviceID)
	assert.True(t, at.Equal(decided.ReviewedAt))
}

func TestPublisher_SendFailureIsInfrastructure(t *testing.T) {
	p, _ := newCapturingPublisher(errors.New("connection reset"))

	err := p.PublishPasswordReset(context.Background(), auth.PasswordResetEvent{Email: "a@x.com"})
	assert.True(t, domain.Is(err, "rabbit_unavailable"), "got %v", err)
}
