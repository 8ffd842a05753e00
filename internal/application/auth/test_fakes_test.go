package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeAccountRepo struct {
	mu sync.Mutex

	byID    map[string]domain.Account
	byEmail map[string]string

	getByEmailErr error
	createErr     error
	bindErr       error
	touchErr      error

	binds []struct {
		id, device string
		version    int64
	}
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{byID: map[string]domain.Account{}, byEmail: map[string]string{}}
}

func (f *fakeAccountRepo) add(a domain.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[a.ID] = a
	f.byEmail[a.Email] = a.ID
}

func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getByEmailErr != nil {
		return domain.Account{}, f.getByEmailErr
	}
	id, ok := f.byEmail[email]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound()
	}
	return f.byID[id], nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound()
	}
	return a, nil
}

func (f *fakeAccountRepo) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Account{}, f.createErr
	}
	if _, dup := f.byEmail[a.Email]; dup {
		return domain.Account{}, domain.ErrEmailAlreadyExists()
	}
	f.byID[a.ID] = a
	f.byEmail[a.Email] = a.ID
	return a, nil
}

func (f *fakeAccountRepo) BindDevice(ctx context.Context, id, dev string, expected int64) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binds = append(f.binds, struct {
		id, device string
		version    int64
	}{id, dev, expected})
	if f.bindErr != nil {
		return domain.Account{}, f.bindErr
	}
	a, ok := f.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound()
	}
	if a.Version != expected {
		return domain.Account{}, domain.ErrDeviceBindingConflict()
	}
	a.BoundDeviceID = dev
	a.Version++
	f.byID[id] = a
	return a, nil
}

func (f *fakeAccountRepo) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	a.PasswordHash = hash
	f.byID[id] = a
	return nil
}

func (f *fakeAccountRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	a.LastLoginAt = &at
	f.byID[id] = a
	return nil
}

// fakeGuard answers with a scripted decision and records calls.
type fakeGuard struct {
	mu sync.Mutex

	decision device.Decision
	err      error
	latest   *domain.DeviceChangeRequest

	checks    []string
	submitted []device.SubmitInput
}

func (g *fakeGuard) Check(ctx context.Context, acct domain.Account, claimed string) (device.Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks = append(g.checks, claimed)
	return g.decision, g.err
}

func (g *fakeGuard) LatestForAccount(ctx context.Context, accountID string) (*domain.DeviceChangeRequest, error) {
	return g.latest, nil
}

func (g *fakeGuard) Submit(ctx context.Context, in device.SubmitInput) (domain.DeviceChangeRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitted = append(g.submitted, in)
	return domain.DeviceChangeRequest{ID: "req-1", AccountID: in.AccountID, NewDeviceID: in.NewDeviceID, Status: domain.DeviceChangePending}, nil
}

func (g *fakeGuard) List(ctx context.Context, f domain.DeviceChangeFilter) ([]domain.DeviceChangeRequest, int, error) {
	return nil, 0, nil
}

type fakeHasher struct {
	hashFn func(pw string) (string, error)
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashFn != nil {
		return h.hashFn(password)
	}
	return "hash:" + password, nil
}

func (h *fakeHasher) Compare(hash string, password string) error {
	if hash == "hash:"+password {
		return nil
	}
	return errors.New("mismatch")
}

type fakeSigner struct{}

func (s *fakeSigner) SignAccessToken(userID string, role string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("jwt(%s,%s)", userID, role), nil
}

func (s *fakeSigner) VerifyAccessToken(token string) (TokenClaims, error) {
	return TokenClaims{}, nil
}

type fakeSessions struct {
	mu         sync.Mutex
	byToken    map[string]string
	n          int
	revokedAll []string
}

func newFakeSessions() *fakeSessions { return &fakeSessions{byToken: map[string]string{}} }

func (s *fakeSessions) CreateRefreshToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	tok := fmt.Sprintf("rft%d:%s", s.n, userID)
	s.byToken[tok] = userID
	return tok, nil
}

func (s *fakeSessions) RotateRefreshToken(ctx context.Context, old string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	uid, ok := s.byToken[old]
	delete(s.byToken, old)
	s.mu.Unlock()
	if !ok {
		return "", errors.New("invalid refresh")
	}
	return s.CreateRefreshToken(ctx, uid, ttl)
}

func (s *fakeSessions) RevokeRefreshToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
	return nil
}

func (s *fakeSessions) RevokeAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, uid := range s.byToken {
		if uid == userID {
			delete(s.byToken, tok)
		}
	}
	s.revokedAll = append(s.revokedAll, userID)
	return nil
}

func (s *fakeSessions) GetUserIDByRefreshToken(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.byToken[token]
	if !ok {
		return "", errors.New("invalid refresh")
	}
	return uid, nil
}

type fakeOTT struct {
	mu   sync.Mutex
	data map[string]string
}

func (o *fakeOTT) Save(ctx context.Context, kind OneTimeTokenKind, token, userID string, ttl time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.data == nil {
		o.data = map[string]string{}
	}
	o.data[token] = userID
	return nil
}

func (o *fakeOTT) Consume(ctx context.Context, kind OneTimeTokenKind, token string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	uid, ok := o.data[token]
	if !ok {
		return "", domain.ErrResetTokenNotFound()
	}
	delete(o.data, token)
	return uid, nil
}

type fakePending struct {
	mu      sync.Mutex
	byEmail map[string]domain.PendingRegistration
	putErr  error
}

func newFakePending() *fakePending {
	return &fakePending{byEmail: map[string]domain.PendingRegistration{}}
}

func (p *fakePending) Put(ctx context.Context, r domain.PendingRegistration, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.putErr != nil {
		return p.putErr
	}
	p.byEmail[r.Email] = r
	return nil
}

func (p *fakePending) Get(ctx context.Context, email string) (domain.PendingRegistration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.byEmail[email]
	if !ok {
		return domain.PendingRegistration{}, domain.ErrOTPNotFound()
	}
	return r, nil
}

func (p *fakePending) Delete(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byEmail, email)
	return nil
}

func (p *fakePending) IncrementAttempts(ctx context.Context, email string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.byEmail[email]
	if !ok {
		return 0, domain.ErrOTPNotFound()
	}
	r.Attempts++
	p.byEmail[email] = r
	return r.Attempts, nil
}

type fakeCodes struct{ code string }

func (c fakeCodes) NewCode() (string, error) { return c.code, nil }

type fakePublisher struct {
	mu        sync.Mutex
	otpEvts   []RegistrationOTPEvent
	resetEvts []PasswordResetEvent
}

func (p *fakePublisher) PublishRegistrationOTP(ctx context.Context, evt RegistrationOTPEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.otpEvts = append(p.otpEvts, evt)
	return nil
}

func (p *fakePublisher) PublishPasswordReset(ctx context.Context, evt PasswordResetEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetEvts = append(p.resetEvts, evt)
	return nil
}

/*
Service factory for tests
*/

type testEnv struct {
	svc      *Service
	accounts *fakeAccountRepo
	guard    *fakeGuard
	sessions *fakeSessions
	ott      *fakeOTT
	pending  *fakePending
	pub      *fakePublisher
	audits   *[]auditEntry
	now      time.Time
}

func newSvcForTest(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		accounts: newFakeAccountRepo(),
		guard:    &fakeGuard{decision: device.Decision{Outcome: device.OutcomeMatch}},
		sessions: newFakeSessions(),
		ott:      &fakeOTT{},
		pending:  newFakePending(),
		pub:      &fakePublisher{},
		audits:   &[]auditEntry{},
		now:      time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	var mu sync.Mutex
	env.svc = NewService(Deps{
		Accounts:  env.accounts,
		Devices:   env.guard,
		Hasher:    &fakeHasher{},
		Signer:    &fakeSigner{},
		Sessions:  env.sessions,
		OTT:       env.ott,
		Pending:   env.pending,
		Codes:     fakeCodes{code: "4821"},
		Publisher: env.pub,
	}, Config{
		AccessTTL:            30 * time.Minute,
		RefreshTTL:           90 * 24 * time.Hour,
		PasswordResetBaseURL: "https://lms/reset?token=",
	}).
		WithClock(func() time.Time { return env.now }).
		WithAudit(func(action string, fields map[string]string) {
			mu.Lock()
			defer mu.Unlock()
			cp := map[string]string{}
			for k, v := range fields {
				cp[k] = v
			}
			*env.audits = append(*env.audits, auditEntry{action: action, fields: cp})
		})
	return env
}

func (e *testEnv) learner(bound string) domain.Account {
	a := domain.Account{ID: "u1", Email: "learner@x.com", PasswordHash: "hash:Secret123", Role: "user", BoundDeviceID: bound, Version: 1}
	e.accounts.add(a)
	return a
}

func requireDomainCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if got := domainCode(err); got != wantCode {
		t.Fatalf("expected domain code %q, got %q (err=%v)", wantCode, got, err)
	}
}
