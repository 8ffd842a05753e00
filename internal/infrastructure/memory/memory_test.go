package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

func TestAccountRepo_BindDevice_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	created, err := repo.Create(ctx, domain.Account{ID: "a1", Email: " Learner@X.com ", Role: "user"})
	require.NoError(t, err)
	assert.Equal(t, "learner@x.com", created.Email)
	assert.Equal(t, int64(1), created.Version)

	bound, err := repo.BindDevice(ctx, "a1", " D1 ", created.Version)
	require.NoError(t, err)
	assert.Equal(t, "D1", bound.BoundDeviceID)
	assert.Equal(t, int64(2), bound.Version)

	_, err = repo.BindDevice(ctx, "a1", "D2", created.Version)
	assert.True(t, domain.Is(err, "device_binding_conflict"))

	got, err := repo.GetByEmail(ctx, "LEARNER@x.com")
	require.NoError(t, err)
	assert.Equal(t, "D1", got.BoundDeviceID)
}

func TestAccountRepo_ConcurrentBind_OnlyOneWins(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	_, err := repo.Create(ctx, domain.Account{ID: "a1", Email: "x@y.com", Role: "user"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, dev := range []string{"D1", "D2", "D3", "D4"} {
		wg.Add(1)
		go func(dev string) {
			defer wg.Done()
			if _, err := repo.BindDevice(ctx, "a1", dev, 1); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(dev)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestDeviceRequestRepo_LatestAndResolve(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRequestRepo()
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	_, err := repo.Create(ctx, domain.DeviceChangeRequest{ID: "r1", AccountID: "a1", NewDeviceID: "D2", Status: domain.DeviceChangeApproved, CreatedAt: at})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.DeviceChangeRequest{ID: "r2", AccountID: "a1", NewDeviceID: "d2", Status: domain.DeviceChangePending, CreatedAt: at})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.DeviceChangeRequest{ID: "r3", AccountID: "a1", NewDeviceID: "D3", Status: domain.DeviceChangePending, CreatedAt: at.Add(-time.Hour)})
	require.NoError(t, err)

	latest, err := repo.FindLatestByAccountAndDevice(ctx, "a1", "D2")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "r2", latest.ID)

	none, err := repo.FindLatestByAccountAndDevice(ctx, "a1", "D9")
	require.NoError(t, err)
	assert.Nil(t, none)

	res := domain.DeviceChangeResolution{Status: domain.DeviceChangeRejected, ReviewedBy: "adm", ReviewedAt: at, OnlyIfPending: true}
	got, err := repo.Resolve(ctx, "r2", res)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceChangeRejected, got.Status)
	require.NotNil(t, got.ReviewedAt)

	_, err = repo.Resolve(ctx, "r2", res)
	assert.True(t, domain.Is(err, "device_change_already_resolved"))
	_, err = repo.Resolve(ctx, "missing", res)
	assert.True(t, domain.Is(err, "device_change_request_not_found"))

	items, total, err := repo.List(ctx, domain.DeviceChangeFilter{AccountID: "a1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "r2", items[0].ID)
	assert.Equal(t, "r1", items[1].ID)
}

func TestPendingRegistrationStore_ReplaceAndAttempts(t *testing.T) {
	ctx := context.Background()
	s := NewPendingRegistrationStore()

	require.NoError(t, s.Put(ctx, domain.PendingRegistration{Email: "A@x.com", OTP: "1111"}, time.Minute))
	require.NoError(t, s.Put(ctx, domain.PendingRegistration{Email: "a@x.com", OTP: "2222"}, time.Minute))

	p, err := s.Get(ctx, "a@X.com")
	require.NoError(t, err)
	assert.Equal(t, "2222", p.OTP)

	n, err := s.IncrementAttempts(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete(ctx, "a@x.com"))
	_, err = s.Get(ctx, "a@x.com")
	assert.True(t, domain.Is(err, "otp_not_found"))
}

func TestOneTimeTokenStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewOneTimeTokenStore()
	require.NoError(t, s.Save(ctx, auth.TokenPasswordReset, "tok", "a1", time.Minute))

	uid, err := s.Consume(ctx, auth.TokenPasswordReset, "tok")
	require.NoError(t, err)
	assert.Equal(t, "a1", uid)

	_, err = s.Consume(ctx, auth.TokenPasswordReset, "tok")
	assert.True(t, domain.Is(err, "reset_token_not_found"))
}

func TestSessionStore_RotateAndRevokeAll(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	tok, err := s.CreateRefreshToken(ctx, "a1", time.Hour)
	require.NoError(t, err)
	rotated, err := s.RotateRefreshToken(ctx, tok, time.Hour)
	require.NoError(t, err)

	_, err = s.GetUserIDByRefreshToken(ctx, tok)
	assert.Error(t, err)

	uid, err := s.GetUserIDByRefreshToken(ctx, rotated)
	require.NoError(t, err)
	assert.Equal(t, "a1", uid)

	require.NoError(t, s.RevokeAll(ctx, "a1"))
	_, err = s.GetUserIDByRefreshToken(ctx, rotated)
	assert.Error(t, err)
}
