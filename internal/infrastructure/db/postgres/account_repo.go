package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = $1`

	row, err := scanAccount(r.db.QueryRowContext(ctx, q, domain.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrUserNotFound()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return row.toDomain(), nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	row, err := scanAccount(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrUserNotFound()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return row.toDomain(), nil
}

func (r *AccountRepo) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	const q = `
		INSERT INTO accounts (id, email, password_hash, role, bound_device_id, profile_completed, locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + accountColumns

	if a.Role == "" {
		a.Role = string(domain.RoleUser)
	}
	row, err := scanAccount(r.db.QueryRowContext(ctx, q,
		a.ID,
		domain.NormalizeEmail(a.Email),
		a.PasswordHash,
		a.Role,
		nullString(domain.NormalizeDeviceID(a.BoundDeviceID)),
		a.ProfileCompleted,
		a.Locked,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, domain.ErrEmailAlreadyExists()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return row.toDomain(), nil
}

// BindDevice writes the device only while the row still carries expectedVersion.
// A lost race surfaces as ErrDeviceBindingConflict.
func (r *AccountRepo) BindDevice(ctx context.Context, accountID, deviceID string, expectedVersion int64) (domain.Account, error) {
	const q = `
		UPDATE accounts
		SET bound_device_id = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3
		RETURNING ` + accountColumns

	row, err := scanAccount(r.db.QueryRowContext(ctx, q, accountID, domain.NormalizeDeviceID(deviceID), expectedVersion))
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}

	exists, err := r.exists(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if !exists {
		return domain.Account{}, domain.ErrUserNotFound()
	}
	return domain.Account{}, domain.ErrDeviceBindingConflict()
}

func (r *AccountRepo) UpdatePasswordHash(ctx context.Context, accountID string, newHash string) error {
	const q = `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, q, accountID, newHash)
}

func (r *AccountRepo) TouchLastLogin(ctx context.Context, accountID string, at time.Time) error {
	const q = `UPDATE accounts SET last_login_at = $2 WHERE id = $1`
	return r.execOne(ctx, q, accountID, at.UTC())
}

func (r *AccountRepo) exists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&ok); err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return ok, nil
}

func (r *AccountRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}
