package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

// PendingRegistrationStore keeps one hash per email under reg:<email>.
// Redis expiry drops abandoned signups.
type PendingRegistrationStore struct {
	rdb    *goredis.Client
	prefix string
}

func NewPendingRegistrationStore(c *Client) *PendingRegistrationStore {
	return &PendingRegistrationStore{rdb: rdbOf(c), prefix: "reg:"}
}

func (s *PendingRegistrationStore) Put(ctx context.Context, p domain.PendingRegistration, ttl time.Duration) error {
	if s.rdb == nil {
		return domain.ErrRedisUnavailable(errNotConfigured)
	}
	if ttl <= 0 {
		return domain.ErrMissingField("ttl")
	}
	p.Email = domain.NormalizeEmail(p.Email)
	key := s.prefix + p.Email

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			"email":         p.Email,
			"password_hash": p.PasswordHash,
			"device_id":     p.DeviceID,
			"otp":           p.OTP,
			"attempts":      p.Attempts,
			"expires_at":    p.ExpiresAt.UTC().Format(time.RFC3339Nano),
			"created_at":    p.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}

func (s *PendingRegistrationStore) Get(ctx context.Context, email string) (domain.PendingRegistration, error) {
	if s.rdb == nil {
		return domain.PendingRegistration{}, domain.ErrRedisUnavailable(errNotConfigured)
	}

	m, err := s.rdb.HGetAll(ctx, s.prefix+domain.NormalizeEmail(email)).Result()
	if err != nil {
		return domain.PendingRegistration{}, domain.ErrRedisUnavailable(err)
	}
	if len(m) == 0 {
		return domain.PendingRegistration{}, domain.ErrOTPNotFound()
	}

	p := domain.PendingRegistration{
		Email:        m["email"],
		PasswordHash: m["password_hash"],
		DeviceID:     m["device_id"],
		OTP:          m["otp"],
	}
	p.Attempts, _ = strconv.Atoi(m["attempts"])
	p.ExpiresAt, _ = time.Parse(time.RFC3339Nano, m["expires_at"])
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, m["created_at"])
	return p, nil
}

func (s *PendingRegistrationStore) Delete(ctx context.Context, email string) error {
	if s.rdb == nil {
		return domain.ErrRedisUnavailable(errNotConfigured)
	}
	if err := s.rdb.Del(ctx, s.prefix+domain.NormalizeEmail(email)).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}

// incrScript bumps attempts only on an existing entry so a late verify
// cannot resurrect an expired signup.
var incrScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return nil
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

func (s *PendingRegistrationStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	if s.rdb == nil {
		return 0, domain.ErrRedisUnavailable(errNotConfigured)
	}

	n, err := incrScript.Run(ctx, s.rdb, []string{s.prefix + domain.NormalizeEmail(email)}).Int()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, domain.ErrOTPNotFound()
		}
		return 0, domain.ErrRedisUnavailable(err)
	}
	return n, nil
}
