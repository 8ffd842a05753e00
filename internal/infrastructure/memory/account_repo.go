package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

type AccountRepo struct {
	mu      sync.RWMutex
	byID    map[string]domain.Account
	byEmail map[string]string // normalized email -> id
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		byID:    make(map[string]domain.Account),
		byEmail: make(map[string]string),
	}
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound()
	}
	return r.byID[id], nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound()
	}
	return a, nil
}

func (r *AccountRepo) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.Email = domain.NormalizeEmail(a.Email)
	if _, exists := r.byEmail[a.Email]; exists {
		return domain.Account{}, domain.ErrEmailAlreadyExists()
	}
	if a.ID == "" {
		return domain.Account{}, domain.ErrInternal(nil)
	}
	if a.Version == 0 {
		a.Version = 1
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	r.byID[a.ID] = a
	r.byEmail[a.Email] = a.ID
	return a, nil
}

// BindDevice writes only if the stored version still matches.
func (r *AccountRepo) BindDevice(ctx context.Context, accountID, deviceID string, expectedVersion int64) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[accountID]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound()
	}
	if a.Version != expectedVersion {
		return domain.Account{}, domain.ErrDeviceBindingConflict()
	}
	a.BoundDeviceID = domain.NormalizeDeviceID(deviceID)
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	r.byID[accountID] = a
	return a, nil
}

func (r *AccountRepo) UpdatePasswordHash(ctx context.Context, accountID string, newHash string) error {
	return r.update(accountID, func(a *domain.Account) { a.PasswordHash = newHash })
}

func (r *AccountRepo) TouchLastLogin(ctx context.Context, accountID string, at time.Time) error {
	return r.update(accountID, func(a *domain.Account) { a.LastLoginAt = &at })
}

func (r *AccountRepo) update(id string, fn func(*domain.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	fn(&a)
	a.UpdatedAt = time.Now().UTC()
	r.byID[id] = a
	return nil
}
