package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

type ottEntry struct {
	userID    string
	expiresAt time.Time
}

// OneTimeTokenStore keeps sha256(token) only, like the Redis store.
type OneTimeTokenStore struct {
	mu   sync.Mutex
	data map[string]ottEntry
}

func NewOneTimeTokenStore() *OneTimeTokenStore {
	return &OneTimeTokenStore{data: make(map[string]ottEntry)}
}

func ottKey(kind auth.OneTimeTokenKind, token string) string {
	sum := sha256.Sum256([]byte(token))
	return string(kind) + "|" + hex.EncodeToString(sum[:])
}

func (s *OneTimeTokenStore) Save(ctx context.Context, kind auth.OneTimeTokenKind, token string, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[ottKey(kind, token)] = ottEntry{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *OneTimeTokenStore) Consume(ctx context.Context, kind auth.OneTimeTokenKind, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := ottKey(kind, token)
	e, ok := s.data[k]
	if !ok {
		return "", domain.ErrResetTokenNotFound()
	}
	delete(s.data, k)
	if time.Now().After(e.expiresAt) {
		return "", domain.ErrResetTokenNotFound()
	}
	return e.userID, nil
}
