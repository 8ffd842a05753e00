package redis

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

var errNotConfigured = errors.New("redis not configured")

// SessionStore keeps refresh tokens server side.
//
//	rt:<token>   -> "<account_id>:<generation>" with TTL
//	rtgen:<acct> -> generation counter, bumped by RevokeAll
//
// A token is only honoured while its generation matches the account's.
type SessionStore struct {
	rdb        *goredis.Client
	tokenKey   string
	genKey     string
	tokenBytes int
}

func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{
		rdb:        rdbOf(c),
		tokenKey:   "rt:",
		genKey:     "rtgen:",
		tokenBytes: 32,
	}
}

func (s *SessionStore) CreateRefreshToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", domain.ErrMissingField("user_id")
	}
	if s.rdb == nil {
		return "", domain.ErrRedisUnavailable(errNotConfigured)
	}

	gen, err := s.generation(ctx, userID)
	if err != nil {
		return "", err
	}
	token, err := s.newToken()
	if err != nil {
		return "", err
	}

	if err := s.rdb.Set(ctx, s.tokenKey+token, fmt.Sprintf("%s:%d", userID, gen), ttl).Err(); err != nil {
		return "", domain.ErrRedisUnavailable(err)
	}
	return token, nil
}

// rotateScript moves the value of KEYS[1] to KEYS[2] atomically.
var rotateScript = goredis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  return nil
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], v, "PX", ARGV[1])
return v
`)

func (s *SessionStore) RotateRefreshToken(ctx context.Context, oldToken string, ttl time.Duration) (string, error) {
	oldToken = strings.TrimSpace(oldToken)
	if oldToken == "" {
		return "", domain.ErrRefreshTokenInvalid()
	}
	if s.rdb == nil {
		return "", domain.ErrRedisUnavailable(errNotConfigured)
	}

	newToken, err := s.newToken()
	if err != nil {
		return "", err
	}
	ttlms := ttl.Milliseconds()
	if ttlms <= 0 {
		ttlms = (7 * 24 * time.Hour).Milliseconds()
	}

	res, err := rotateScript.Run(ctx, s.rdb, []string{s.tokenKey + oldToken, s.tokenKey + newToken}, ttlms).Text()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", domain.ErrRefreshTokenInvalid()
		}
		return "", domain.ErrRedisUnavailable(err)
	}

	uid, gen, err := parseSession(res)
	if err != nil {
		return "", domain.ErrRefreshTokenInvalid()
	}
	cur, err := s.generation(ctx, uid)
	if err != nil {
		return "", err
	}
	if gen != cur {
		_ = s.rdb.Del(ctx, s.tokenKey+newToken).Err()
		return "", domain.ErrRefreshTokenInvalid()
	}
	return newToken, nil
}

func (s *SessionStore) RevokeRefreshToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if s.rdb == nil {
		return domain.ErrRedisUnavailable(errNotConfigured)
	}
	if err := s.rdb.Del(ctx, s.tokenKey+token).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}

func (s *SessionStore) RevokeAll(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrMissingField("user_id")
	}
	if s.rdb == nil {
		return domain.ErrRedisUnavailable(errNotConfigured)
	}
	if err := s.rdb.Incr(ctx, s.genKey+userID).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}

func (s *SessionStore) GetUserIDByRefreshToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrRefreshTokenInvalid()
	}
	if s.rdb == nil {
		return "", domain.ErrRedisUnavailable(errNotConfigured)
	}

	val, err := s.rdb.Get(ctx, s.tokenKey+token).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", domain.ErrRefreshTokenInvalid()
		}
		return "", domain.ErrRedisUnavailable(err)
	}

	uid, gen, err := parseSession(val)
	if err != nil {
		return "", domain.ErrRefreshTokenInvalid()
	}
	cur, err := s.generation(ctx, uid)
	if err != nil {
		return "", err
	}
	if gen != cur {
		return "", domain.ErrRefreshTokenInvalid()
	}
	return uid, nil
}

// generation treats a missing or unparsable counter as 0.
func (s *SessionStore) generation(ctx context.Context, userID string) (int64, error) {
	v, err := s.rdb.Get(ctx, s.genKey+userID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, domain.ErrRedisUnavailable(err)
	}
	n, perr := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if perr != nil {
		return 0, nil
	}
	return n, nil
}

func parseSession(v string) (string, int64, error) {
	i := strings.LastIndexByte(v, ':')
	if i <= 0 || i == len(v)-1 {
		return "", 0, fmt.Errorf("bad session value %q", v)
	}
	uid := strings.TrimSpace(v[:i])
	if uid == "" {
		return "", 0, fmt.Errorf("empty account id")
	}
	gen, err := strconv.ParseInt(strings.TrimSpace(v[i+1:]), 10, 64)
	if err != nil {
		return "", 0, err
	}
	return uid, gen, nil
}

func (s *SessionStore) newToken() (string, error) {
	b := make([]byte, s.tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", domain.ErrRandomFailed(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
