package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

// OneTimeTokenStore keys entries by sha256(token); the raw token only
// ever lives in the email.
type OneTimeTokenStore struct {
	rdb    *goredis.Client
	prefix string
}

func NewOneTimeTokenStore(c *Client) *OneTimeTokenStore {
	return &OneTimeTokenStore{rdb: rdbOf(c), prefix: "ott:"}
}

func (s *OneTimeTokenStore) Save(ctx context.Context, kind auth.OneTimeTokenKind, token string, userID string, ttl time.Duration) error {
	token = strings.TrimSpace(token)
	userID = strings.TrimSpace(userID)
	if token == "" {
		return domain.ErrMissingField("token")
	}
	if userID == "" {
		return domain.ErrMissingField("user_id")
	}
	if ttl <= 0 {
		return domain.ErrMissingField("ttl")
	}
	if s.rdb == nil {
		return domain.ErrRedisUnavailable(errNotConfigured)
	}

	if err := s.rdb.Set(ctx, s.key(kind, token), userID, ttl).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}

var consumeScript = goredis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  return nil
end
redis.call("DEL", KEYS[1])
return v
`)

func (s *OneTimeTokenStore) Consume(ctx context.Context, kind auth.OneTimeTokenKind, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrMissingField("token")
	}
	if s.rdb == nil {
		return "", domain.ErrRedisUnavailable(errNotConfigured)
	}

	uid, err := consumeScript.Run(ctx, s.rdb, []string{s.key(kind, token)}).Text()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", domain.ErrResetTokenNotFound()
		}
		return "", domain.ErrRedisUnavailable(err)
	}
	if strings.TrimSpace(uid) == "" {
		return "", domain.ErrResetTokenNotFound()
	}
	return uid, nil
}

func (s *OneTimeTokenStore) key(kind auth.OneTimeTokenKind, token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + string(kind) + ":" + hex.EncodeToString(sum[:])
}
