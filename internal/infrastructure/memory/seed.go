package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/baechuer/lms-auth-service/internal/domain"
	"github.com/baechuer/lms-auth-service/internal/logger"
)

// Hasher is the minimal surface we need for seeding.
type Hasher interface {
	Hash(password string) (string, error)
}

// SeedAccounts creates a dev admin and an unbound learner (in-memory only).
// Safe to call multiple times (duplicates ignored).
func SeedAccounts(ctx context.Context, accounts *AccountRepo, hasher Hasher) {
	seeds := []struct {
		Email string
		Role  domain.Role
		Pass  string
	}{
		{Email: "admin@example.com", Role: domain.RoleAdmin, Pass: "AdminPassword123!"},
		{Email: "learner@example.com", Role: domain.RoleUser, Pass: "LearnerPassword123!"},
	}

	for _, s := range seeds {
		hash, err := hasher.Hash(s.Pass)
		if err != nil {
			logger.Logger.Warn().Err(err).Str("email", s.Email).Msg("[seed] hash failed")
			continue
		}
		_, err = accounts.Create(ctx, domain.Account{
			ID:           uuid.NewString(),
			Email:        s.Email,
			PasswordHash: hash,
			Role:         string(s.Role),
		})
		if err != nil && !domain.Is(err, "email_already_exists") {
			logger.Logger.Warn().Err(err).Str("email", s.Email).Msg("[seed] create failed")
			continue
		}
		logger.Logger.Info().Str("email", s.Email).Str("role", string(s.Role)).Msg("[seed] account ready")
	}
}
