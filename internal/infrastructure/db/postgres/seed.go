package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/baechuer/lms-auth-service/internal/domain"
	"github.com/baechuer/lms-auth-service/internal/logger"
)

type SeederHasher interface {
	Hash(password string) (string, error)
}

type SeederRepo interface {
	Create(ctx context.Context, a domain.Account) (domain.Account, error)
}

// SeedAdmin makes sure an admin exists so the review queue is reachable on a
// fresh database. Restart safe: an existing email is left untouched.
func SeedAdmin(ctx context.Context, repo SeederRepo, hasher SeederHasher, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return domain.ErrHashFailed(err)
	}

	_, err = repo.Create(ctx, domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         string(domain.RoleAdmin),
	})
	if err != nil {
		if domain.Is(err, "email_already_exists") {
			return nil
		}
		return err
	}

	logger.Logger.Info().Str("email", email).Msg("[seed] admin account created")
	return nil
}
