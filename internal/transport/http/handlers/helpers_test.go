package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/domain"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/memory"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/security"
	"github.com/baechuer/lms-auth-service/internal/transport/http/middleware"
	"github.com/baechuer/lms-auth-service/internal/transport/http/response"
)

// capturePublisher keeps the last event of each kind.
type capturePublisher struct {
	mu       sync.Mutex
	otp      auth.RegistrationOTPEvent
	reset    auth.PasswordResetEvent
	decision device.DecisionEvent
}

func (p *capturePublisher) PublishRegistrationOTP(_ context.Context, evt auth.RegistrationOTPEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.otp = evt
	return nil
}

func (p *capturePublisher) PublishPasswordReset(_ context.Context, evt auth.PasswordResetEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset = evt
	return nil
}

func (p *capturePublisher) PublishDeviceChangeDecided(_ context.Context, evt device.DecisionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decision = evt
	return nil
}

type testEnv struct {
	auth     *AuthHandler
	devices  *DeviceChangeHandler
	accounts *memory.AccountRepo
	pub      *capturePublisher
	hasher   *security.BcryptHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	accounts := memory.NewAccountRepo()
	requests := memory.NewDeviceRequestRepo()
	pub := &capturePublisher{}
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	devSvc := device.NewService(accounts, requests, pub, device.Policy{})
	authSvc := auth.NewService(auth.Deps{
		Accounts:  accounts,
		Devices:   devSvc,
		Hasher:    hasher,
		Signer:    security.NewJWTSigner("handler-secret", "lms-auth"),
		Sessions:  memory.NewSessionStore(),
		OTT:       memory.NewOneTimeTokenStore(),
		Pending:   memory.NewPendingRegistrationStore(),
		Codes:     security.NewNumericCodeGenerator(4),
		Publisher: pub,
	}, auth.Config{
		AccessTTL:            time.Minute,
		RefreshTTL:           time.Hour,
		PasswordResetBaseURL: "http://lms.test/reset?token=",
	})

	return &testEnv{
		auth:     NewAuthHandler(authSvc, time.Hour, false),
		devices:  NewDeviceChangeHandler(authSvc, devSvc),
		accounts: accounts,
		pub:      pub,
		hasher:   hasher,
	}
}

func (e *testEnv) seed(t *testing.T, id, email, role, boundDevice string) {
	t.Helper()
	hash, err := e.hasher.Hash("Secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := e.accounts.Create(context.Background(), domain.Account{
		ID: id, Email: email, PasswordHash: hash, Role: role, BoundDeviceID: boundDevice,
	}); err != nil {
		t.Fatalf("seed %s: %v", email, err)
	}
}

func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func do(t *testing.T, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, mustJSONBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// readData decodes the {"data": ...} envelope into out.
func readData(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil || len(env.Data) == 0 {
		t.Fatalf("decode envelope failed; body=%s", rr.Body.String())
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v; body=%s", err, rr.Body.String())
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v; body=%s", err, rr.Body.String())
	}
	return body.Error.Code
}

func readCookie(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func withUserCtx(req *http.Request, userID, role string) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, role))
}

func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
