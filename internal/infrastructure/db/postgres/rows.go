package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

const accountColumns = `id, email, password_hash, role, bound_device_id, profile_completed, locked,
	version, last_login_at, created_at, updated_at`

const requestColumns = `id, seq, account_id, previous_device_id, new_device_id, reason, status,
	reviewed_by, reviewed_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

type accountRow struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             string
	BoundDeviceID    sql.NullString
	ProfileCompleted bool
	Locked           bool
	Version          int64
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func scanAccount(s scanner) (accountRow, error) {
	var r accountRow
	err := s.Scan(
		&r.ID, &r.Email, &r.PasswordHash, &r.Role, &r.BoundDeviceID,
		&r.ProfileCompleted, &r.Locked, &r.Version, &r.LastLoginAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:               r.ID,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash,
		Role:             r.Role,
		BoundDeviceID:    r.BoundDeviceID.String,
		ProfileCompleted: r.ProfileCompleted,
		Locked:           r.Locked,
		Version:          r.Version,
		LastLoginAt:      r.LastLoginAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type requestRow struct {
	ID               string
	Seq              int64
	AccountID        string
	PreviousDeviceID string
	NewDeviceID      string
	Reason           string
	Status           string
	ReviewedBy       sql.NullString
	ReviewedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func scanRequest(s scanner) (requestRow, error) {
	var r requestRow
	err := s.Scan(
		&r.ID, &r.Seq, &r.AccountID, &r.PreviousDeviceID, &r.NewDeviceID,
		&r.Reason, &r.Status, &r.ReviewedBy, &r.ReviewedAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (r requestRow) toDomain() domain.DeviceChangeRequest {
	return domain.DeviceChangeRequest{
		ID:               r.ID,
		AccountID:        r.AccountID,
		PreviousDeviceID: r.PreviousDeviceID,
		NewDeviceID:      r.NewDeviceID,
		Reason:           r.Reason,
		Status:           domain.DeviceChangeStatus(r.Status),
		ReviewedBy:       r.ReviewedBy.String,
		ReviewedAt:       r.ReviewedAt,
		Seq:              r.Seq,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation matches SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
