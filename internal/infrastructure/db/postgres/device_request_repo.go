package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

type DeviceRequestRepo struct {
	db *sql.DB
}

func NewDeviceRequestRepo(db *sql.DB) *DeviceRequestRepo {
	return &DeviceRequestRepo{db: db}
}

// Create lets the database stamp created_at and seq so ordering stays total
// across replicas.
func (r *DeviceRequestRepo) Create(ctx context.Context, req domain.DeviceChangeRequest) (domain.DeviceChangeRequest, error) {
	const q = `
		INSERT INTO device_change_requests (id, account_id, previous_device_id, new_device_id, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + requestColumns

	status := req.Status
	if status == "" {
		status = domain.DeviceChangePending
	}
	row, err := scanRequest(r.db.QueryRowContext(ctx, q,
		req.ID, req.AccountID, req.PreviousDeviceID, req.NewDeviceID, req.Reason, string(status),
	))
	if err != nil {
		return domain.DeviceChangeRequest{}, domain.ErrDBUnavailable(err)
	}
	return row.toDomain(), nil
}

func (r *DeviceRequestRepo) GetByID(ctx context.Context, id string) (domain.DeviceChangeRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM device_change_requests WHERE id = $1`

	row, err := scanRequest(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DeviceChangeRequest{}, domain.ErrDeviceChangeRequestNotFound()
		}
		return domain.DeviceChangeRequest{}, domain.ErrDBUnavailable(err)
	}
	return row.toDomain(), nil
}

func (r *DeviceRequestRepo) FindLatestByAccountAndDevice(ctx context.Context, accountID, deviceID string) (*domain.DeviceChangeRequest, error) {
	const q = `
		SELECT ` + requestColumns + `
		FROM device_change_requests
		WHERE account_id = $1 AND lower(new_device_id) = lower($2)
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`

	return r.findOne(ctx, q, accountID, domain.NormalizeDeviceID(deviceID))
}

func (r *DeviceRequestRepo) FindLatestByAccount(ctx context.Context, accountID string) (*domain.DeviceChangeRequest, error) {
	const q = `
		SELECT ` + requestColumns + `
		FROM device_change_requests
		WHERE account_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`

	return r.findOne(ctx, q, accountID)
}

func (r *DeviceRequestRepo) findOne(ctx context.Context, q string, args ...any) (*domain.DeviceChangeRequest, error) {
	row, err := scanRequest(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.ErrDBUnavailable(err)
	}
	out := row.toDomain()
	return &out, nil
}

// Resolve is a single conditional UPDATE. When it matches nothing we look the
// row up to tell "unknown id" from "already decided".
func (r *DeviceRequestRepo) Resolve(ctx context.Context, id string, res domain.DeviceChangeResolution) (domain.DeviceChangeRequest, error) {
	const q = `
		UPDATE device_change_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4
		WHERE id = $1 AND ($5::boolean = FALSE OR status = 'pending')
		RETURNING ` + requestColumns

	row, err := scanRequest(r.db.QueryRowContext(ctx, q,
		id, string(res.Status), res.ReviewedBy, res.ReviewedAt.UTC(), res.OnlyIfPending,
	))
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.DeviceChangeRequest{}, domain.ErrDBUnavailable(err)
	}

	const statusQ = `SELECT status FROM device_change_requests WHERE id = $1`
	var status string
	if err := r.db.QueryRowContext(ctx, statusQ, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DeviceChangeRequest{}, domain.ErrDeviceChangeRequestNotFound()
		}
		return domain.DeviceChangeRequest{}, domain.ErrDBUnavailable(err)
	}
	return domain.DeviceChangeRequest{}, domain.ErrDeviceChangeAlreadyResolved(status)
}

func (r *DeviceRequestRepo) List(ctx context.Context, f domain.DeviceChangeFilter) ([]domain.DeviceChangeRequest, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if f.AccountID != "" {
		args = append(args, f.AccountID)
		where = append(where, "account_id = $"+strconv.Itoa(len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_change_requests`+clause, args...).Scan(&total); err != nil {
		return nil, 0, domain.ErrDBUnavailable(err)
	}
	if total == 0 {
		return []domain.DeviceChangeRequest{}, 0, nil
	}

	q := `SELECT ` + requestColumns + ` FROM device_change_requests` + clause +
		` ORDER BY created_at DESC, seq DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += " LIMIT $" + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, domain.ErrDBUnavailable(err)
	}
	defer rows.Close()

	out := make([]domain.DeviceChangeRequest, 0)
	for rows.Next() {
		row, err := scanRequest(rows)
		if err != nil {
			return nil, 0, domain.ErrDBUnavailable(err)
		}
		out = append(out, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.ErrDBUnavailable(err)
	}
	return out, total, nil
}
