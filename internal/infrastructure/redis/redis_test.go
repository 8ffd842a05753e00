package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func isMissingField(err error, field string) bool {
	de, ok := err.(*domain.Error)
	return ok && de.Code == "missing_field" && de.Meta["field"] == field
}

func TestClient_Ping(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestSessionStore_NotConfigured(t *testing.T) {
	s := NewSessionStore(nil)

	_, err := s.CreateRefreshToken(context.Background(), "u1", time.Hour)
	assert.True(t, domain.Is(err, "redis_unavailable"), "got %v", err)

	_, err = s.CreateRefreshToken(context.Background(), "", time.Hour)
	assert.True(t, isMissingField(err, "user_id"), "got %v", err)

	_, err = s.RotateRefreshToken(context.Background(), "", time.Hour)
	assert.True(t, domain.Is(err, "refresh_token_invalid"))
}

func TestSessionStore_CreateRotateRevoke(t *testing.T) {
	c, mr := newTestClient(t)
	s := NewSessionStore(c)
	ctx := context.Background()

	tok, err := s.CreateRefreshToken(ctx, "u1", time.Hour)
	require.NoError(t, err)
	assert.True(t, mr.Exists("rt:"+tok))

	uid, err := s.GetUserIDByRefreshToken(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	rotated, err := s.RotateRefreshToken(ctx, tok, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, tok, rotated)

	// old token is single use
	_, err = s.RotateRefreshToken(ctx, tok, time.Hour)
	assert.True(t, domain.Is(err, "refresh_token_invalid"))

	require.NoError(t, s.RevokeRefreshToken(ctx, rotated))
	_, err = s.GetUserIDByRefreshToken(ctx, rotated)
	assert.True(t, domain.Is(err, "refresh_token_invalid"))
}

func TestSessionStore_RevokeAllInvalidatesEveryToken(t *testing.T) {
	c, _ := newTestClient(t)
	s := NewSessionStore(c)
	ctx := context.Background()

	a, err := s.CreateRefreshToken(ctx, "u1", time.Hour)
	require.NoError(t, err)
	b, err := s.CreateRefreshToken(ctx, "u1", time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.RevokeAll(ctx, "u1"))

	_, err = s.GetUserIDByRefreshToken(ctx, a)
	assert.True(t, domain.Is(err, "refresh_token_invalid"))
	_, err = s.RotateRefreshToken(ctx, b, time.Hour)
	assert.True(t, domain.Is(err, "refresh_token_invalid"))

	fresh, err := s.CreateRefreshToken(ctx, "u1", time.Hour)
	require.NoError(t, err)
	_, err = s.GetUserIDByRefreshToken(ctx, fresh)
	assert.NoError(t, err)
}

func TestSessionStore_TokenExpires(t *testing.T) {
	c, mr := newTestClient(t)
	s := NewSessionStore(c)
	ctx := context.Background()

	tok, err := s.CreateRefreshToken(ctx, "u1", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	_, err = s.GetUserIDByRefreshToken(ctx, tok)
	assert.True(t, domain.Is(err, "refresh_token_invalid"))
}

func TestParseSession(t *testing.T) {
	uid, gen, err := parseSession("abc:3")
	require.NoError(t, err)
	assert.Equal(t, "abc", uid)
	assert.Equal(t, int64(3), gen)

	for _, bad := range []string{"", "abc", "abc:", ":1", "abc:x"} {
		_, _, err := parseSession(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestOneTimeTokenStore_SaveConsume(t *testing.T) {
	c, mr := newTestClient(t)
	s := NewOneTimeTokenStore(c)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, auth.TokenPasswordReset, "raw-token", "u1", 15*time.Minute))
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "raw-token", "raw token must not be stored")
	}

	uid, err := s.Consume(ctx, auth.TokenPasswordReset, "raw-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	_, err = s.Consume(ctx, auth.TokenPasswordReset, "raw-token")
	assert.True(t, domain.Is(err, "reset_token_not_found"), "got %v", err)
}

func TestOneTimeTokenStore_Validation(t *testing.T) {
	s := NewOneTimeTokenStore(nil)
	ctx := context.Background()

	assert.True(t, isMissingField(s.Save(ctx, auth.TokenPasswordReset, "", "u1", time.Minute), "token"))
	assert.True(t, isMissingField(s.Save(ctx, auth.TokenPasswordReset, "tok", "", time.Minute), "user_id"))
	assert.True(t, isMissingField(s.Save(ctx, auth.TokenPasswordReset, "tok", "u1", 0), "ttl"))
	assert.True(t, domain.Is(s.Save(ctx, auth.TokenPasswordReset, "tok", "u1", time.Minute), "redis_unavailable"))
}

func TestOneTimeTokenStore_Expired(t *testing.T) {
	c, mr := newTestClient(t)
	s := NewOneTimeTokenStore(c)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, auth.TokenPasswordReset, "tok", "u1", time.Minute))
	mr.FastForward(time.Hour)

	_, err := s.Consume(ctx, auth.TokenPasswordReset, "tok")
	assert.True(t, domain.Is(err, "reset_token_not_found"))
}

func TestPendingRegistrationStore_Lifecycle(t *testing.T) {
	c, mr := newTestClient(t)
	s := NewPendingRegistrationStore(c)
	ctx := context.Background()
	exp := time.Date(2026, 5, 1, 12, 10, 0, 0, time.UTC)

	_, err := s.Get(ctx, "new@x.com")
	assert.True(t, domain.Is(err, "otp_not_found"))

	require.NoError(t, s.Put(ctx, domain.PendingRegistration{
		Email: "New@X.com", PasswordHash: "h", DeviceID: "D1", OTP: "4821", ExpiresAt: exp,
	}, 10*time.Minute))

	p, err := s.Get(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", p.Email)
	assert.Equal(t, "4821", p.OTP)
	assert.Equal(t, "D1", p.DeviceID)
	assert.True(t, exp.Equal(p.ExpiresAt))

	n, err := s.IncrementAttempts(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementAttempts(ctx, "NEW@x.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a new signup replaces the entry and resets attempts
	require.NoError(t, s.Put(ctx, domain.PendingRegistration{Email: "new@x.com", OTP: "1111", ExpiresAt: exp}, 10*time.Minute))
	p, err = s.Get(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Attempts)
	assert.Equal(t, "1111", p.OTP)

	mr.FastForward(11 * time.Minute)
	_, err = s.IncrementAttempts(ctx, "new@x.com")
	assert.True(t, domain.Is(err, "otp_not_found"), "got %v", err)
	assert.False(t, mr.Exists("reg:new@x.com"))
}

func TestPendingRegistrationStore_Delete(t *testing.T) {
	c, _ := newTestClient(t)
	s := NewPendingRegistrationStore(c)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, domain.PendingRegistration{Email: "a@x.com", OTP: "1"}, time.Minute))
	require.NoError(t, s.Delete(ctx, "A@x.com"))
	_, err := s.Get(ctx, "a@x.com")
	assert.True(t, domain.Is(err, "otp_not_found"))
}

func TestFixedWindowLimiter(t *testing.T) {
	c, mr := newTestClient(t)
	l := NewFixedWindowLimiter(c)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "rl:login:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i)
		assert.Equal(t, 3-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "rl:login:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	mr.FastForward(time.Minute + time.Second)
	d, err = l.Allow(ctx, "rl:login:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestFixedWindowLimiter_FailOpen(t *testing.T) {
	l := NewFixedWindowLimiter(nil)

	d, err := l.Allow(context.Background(), "k", 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 10, d.Remaining)

	d, _ = l.Allow(context.Background(), "k", 0, time.Minute)
	assert.True(t, d.Allowed)
}
