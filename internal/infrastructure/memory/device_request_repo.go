package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

// DeviceRequestRepo keeps change requests in insertion order.
// seq mirrors the BIGSERIAL column of the Postgres store.
type DeviceRequestRepo struct {
	mu   sync.RWMutex
	seq  int64
	rows []domain.DeviceChangeRequest
	idx  map[string]int
}

func NewDeviceRequestRepo() *DeviceRequestRepo {
	return &DeviceRequestRepo{idx: make(map[string]int)}
}

func (r *DeviceRequestRepo) Create(ctx context.Context, req domain.DeviceChangeRequest) (domain.DeviceChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.ID == "" {
		return domain.DeviceChangeRequest{}, domain.ErrInternal(nil)
	}
	if _, dup := r.idx[req.ID]; dup {
		return domain.DeviceChangeRequest{}, domain.ErrInternal(nil)
	}
	r.seq++
	req.Seq = r.seq
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	r.idx[req.ID] = len(r.rows)
	r.rows = append(r.rows, req)
	return req, nil
}

func (r *DeviceRequestRepo) GetByID(ctx context.Context, id string) (domain.DeviceChangeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.idx[id]
	if !ok {
		return domain.DeviceChangeRequest{}, domain.ErrDeviceChangeRequestNotFound()
	}
	return r.rows[i], nil
}

func (r *DeviceRequestRepo) latest(match func(domain.DeviceChangeRequest) bool) *domain.DeviceChangeRequest {
	var best *domain.DeviceChangeRequest
	for i := range r.rows {
		if !match(r.rows[i]) {
			continue
		}
		if best == nil || r.rows[i].NewerThan(*best) {
			cp := r.rows[i]
			best = &cp
		}
	}
	return best
}

func (r *DeviceRequestRepo) FindLatestByAccountAndDevice(ctx context.Context, accountID, deviceID string) (*domain.DeviceChangeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.latest(func(x domain.DeviceChangeRequest) bool {
		return x.AccountID == accountID && domain.SameDevice(x.NewDeviceID, deviceID)
	}), nil
}

func (r *DeviceRequestRepo) FindLatestByAccount(ctx context.Context, accountID string) (*domain.DeviceChangeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.latest(func(x domain.DeviceChangeRequest) bool { return x.AccountID == accountID }), nil
}

func (r *DeviceRequestRepo) Resolve(ctx context.Context, id string, res domain.DeviceChangeResolution) (domain.DeviceChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.idx[id]
	if !ok {
		return domain.DeviceChangeRequest{}, domain.ErrDeviceChangeRequestNotFound()
	}
	row := r.rows[i]
	if res.OnlyIfPending && row.Status != domain.DeviceChangePending {
		return domain.DeviceChangeRequest{}, domain.ErrDeviceChangeAlreadyResolved(string(row.Status))
	}
	at := res.ReviewedAt.UTC()
	row.Status = res.Status
	row.ReviewedBy = res.ReviewedBy
	row.ReviewedAt = &at
	row.UpdatedAt = at
	r.rows[i] = row
	return row, nil
}

func (r *DeviceRequestRepo) List(ctx context.Context, f domain.DeviceChangeFilter) ([]domain.DeviceChangeRequest, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.DeviceChangeRequest, 0)
	for _, x := range r.rows {
		if f.Status != "" && x.Status != f.Status {
			continue
		}
		if f.AccountID != "" && x.AccountID != f.AccountID {
			continue
		}
		out = append(out, x)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NewerThan(out[j]) })

	total := len(out)
	if f.Offset >= total {
		return []domain.DeviceChangeRequest{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}
