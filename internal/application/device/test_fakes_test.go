package device

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

type auditEntry struct {
	action string
	fields map[string]string
}

type fakeAccounts struct {
	mu   sync.Mutex
	byID map[string]domain.Account
	err  error
}

func newFakeAccounts(accts ...domain.Account) *fakeAccounts {
	f := &fakeAccounts{byID: map[string]domain.Account{}}
	for _, a := range accts {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) GetByID(ctx context.Context, id string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Account{}, f.err
	}
	a, ok := f.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound()
	}
	return a, nil
}

type fakeRequests struct {
	mu   sync.Mutex
	seq  int64
	byID map[string]domain.DeviceChangeRequest

	createErr  error
	findErr    error
	resolveErr error

	findCalls int
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{byID: map[string]domain.DeviceChangeRequest{}}
}

func (f *fakeRequests) Create(ctx context.Context, r domain.DeviceChangeRequest) (domain.DeviceChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.DeviceChangeRequest{}, f.createErr
	}
	f.seq++
	r.Seq = f.seq
	f.byID[r.ID] = r
	return r, nil
}

func (f *fakeRequests) GetByID(ctx context.Context, id string) (domain.DeviceChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return domain.DeviceChangeRequest{}, domain.ErrDeviceChangeRequestNotFound()
	}
	return r, nil
}

func (f *fakeRequests) latest(match func(domain.DeviceChangeRequest) bool) *domain.DeviceChangeRequest {
	var best *domain.DeviceChangeRequest
	for _, r := range f.byID {
		if !match(r) {
			continue
		}
		if best == nil || r.NewerThan(*best) {
			cp := r
			best = &cp
		}
	}
	return best
}

func (f *fakeRequests) FindLatestByAccountAndDevice(ctx context.Context, accountID, deviceID string) (*domain.DeviceChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.latest(func(r domain.DeviceChangeRequest) bool {
		return r.AccountID == accountID && domain.SameDevice(r.NewDeviceID, deviceID)
	}), nil
}

func (f *fakeRequests) FindLatestByAccount(ctx context.Context, accountID string) (*domain.DeviceChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest(func(r domain.DeviceChangeRequest) bool { return r.AccountID == accountID }), nil
}

func (f *fakeRequests) Resolve(ctx context.Context, id string, res domain.DeviceChangeResolution) (domain.DeviceChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return domain.DeviceChangeRequest{}, f.resolveErr
	}
	r, ok := f.byID[id]
	if !ok {
		return domain.DeviceChangeRequest{}, domain.ErrDeviceChangeRequestNotFound()
	}
	if res.OnlyIfPending && r.Status != domain.DeviceChangePending {
		return domain.DeviceChangeRequest{}, domain.ErrDeviceChangeAlreadyResolved(string(r.Status))
	}
	at := res.ReviewedAt
	r.Status = res.Status
	r.ReviewedBy = res.ReviewedBy
	r.ReviewedAt = &at
	r.UpdatedAt = at
	f.byID[id] = r
	return r, nil
}

func (f *fakeRequests) List(ctx context.Context, flt domain.DeviceChangeFilter) ([]domain.DeviceChangeRequest, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeviceChangeRequest
	for _, r := range f.byID {
		if flt.Status != "" && r.Status != flt.Status {
			continue
		}
		if flt.AccountID != "" && r.AccountID != flt.AccountID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NewerThan(out[j]) })
	total := len(out)
	if flt.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[flt.Offset:]
	if len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, total, nil
}

// put stores a request as-is, for seeding history.
func (f *fakeRequests) put(r domain.DeviceChangeRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if r.Seq == 0 {
		r.Seq = f.seq
	}
	f.byID[r.ID] = r
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	evts []DecisionEvent
}

func (p *fakePublisher) PublishDeviceChangeDecided(ctx context.Context, evt DecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.evts = append(p.evts, evt)
	return nil
}

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newSvcForTest(t *testing.T, policy Policy, accts ...domain.Account) (*Service, *fakeRequests, *fakePublisher, *[]auditEntry) {
	t.Helper()

	reqs := newFakeRequests()
	pub := &fakePublisher{}
	audits := &[]auditEntry{}

	var mu sync.Mutex
	svc := NewService(newFakeAccounts(accts...), reqs, pub, policy).
		WithClock(func() time.Time { return testNow }).
		WithAudit(func(action string, fields map[string]string) {
			mu.Lock()
			defer mu.Unlock()
			cp := map[string]string{}
			for k, v := range fields {
				cp[k] = v
			}
			*audits = append(*audits, auditEntry{action: action, fields: cp})
		})
	return svc, reqs, pub, audits
}

func requireDomainCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if got := domainCode(err); got != wantCode {
		t.Fatalf("expected domain code %q, got %q (err=%v)", wantCode, got, err)
	}
}
