package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

// AccountGetter is the source of truth behind PrincipalCache.
type AccountGetter interface {
	GetByID(ctx context.Context, id string) (domain.Account, error)
}

// PrincipalCache serves the bearer middleware's per-request account lookup.
// Only role and lock state are cached, never credentials, so the returned
// Account carries ID, Role and Locked and nothing else.
//
//	principal:<account_id> -> hash{role, locked} with TTL
//
// Redis errors fall through to the inner reader. A lock applied directly in
// the database is honoured once the entry expires.
type PrincipalCache struct {
	inner   AccountGetter
	rdb     *goredis.Client
	ttl     time.Duration
	keyPref string
}

func NewPrincipalCache(inner AccountGetter, c *Client, ttl time.Duration) *PrincipalCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PrincipalCache{inner: inner, rdb: rdbOf(c), ttl: ttl, keyPref: "principal:"}
}

func (p *PrincipalCache) key(id string) string { return p.keyPref + id }

func (p *PrincipalCache) GetByID(ctx context.Context, id string) (domain.Account, error) {
	if p.rdb != nil {
		vals, err := p.rdb.HGetAll(ctx, p.key(id)).Result()
		if err == nil && vals["role"] != "" {
			if locked, perr := strconv.ParseBool(vals["locked"]); perr == nil {
				return domain.Account{ID: id, Role: vals["role"], Locked: locked}, nil
			}
		}
	}

	acct, err := p.inner.GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	if p.rdb != nil {
		k := p.key(id)
		_, _ = p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, k, "role", acct.Role, "locked", strconv.FormatBool(acct.Locked))
			pipe.Expire(ctx, k, p.ttl)
			return nil
		})
	}
	return domain.Account{ID: acct.ID, Role: acct.Role, Locked: acct.Locked}, nil
}

// Forget drops the cached entry so the next lookup reads through.
func (p *PrincipalCache) Forget(ctx context.Context, id string) error {
	if p.rdb == nil {
		return nil
	}
	if err := p.rdb.Del(ctx, p.key(id)).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}
