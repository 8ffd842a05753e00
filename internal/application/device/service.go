package device

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Policy holds the knobs admins have asked to keep configurable.
type Policy struct {
	// AllowReResolve restores the legacy behaviour where resolving an
	// approved or rejected request overwrites its status, reviewer and
	// reviewed-at. Off by default: a terminal request answers with
	// device_change_already_resolved and is left unchanged, so an approval
	// that already rebound a device cannot be silently flipped. Deployments
	// relying on admins correcting a decision in place must turn it on.
	AllowReResolve bool
}

type Service struct {
	accounts AccountReader
	requests RequestRepo
	pub      DecisionPublisher
	policy   Policy

	now   func() time.Time
	newID func() string
	audit func(action string, fields map[string]string)
}

func NewService(accounts AccountReader, requests RequestRepo, pub DecisionPublisher, policy Policy) *Service {
	return &Service{
		accounts: accounts,
		requests: requests,
		pub:      pub,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		audit:    func(string, map[string]string) {},
	}
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// WithClock is used by tests to pin timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Check runs the guard for a login attempt. The request store is only
// consulted when the account already has a different device bound.
func (s *Service) Check(ctx context.Context, acct domain.Account, claimedDeviceID string) (Decision, error) {
	claimed := domain.NormalizeDeviceID(claimedDeviceID)

	var latest *domain.DeviceChangeRequest
	if claimed != "" && acct.HasBoundDevice() && !domain.SameDevice(acct.BoundDeviceID, claimed) {
		r, err := s.requests.FindLatestByAccountAndDevice(ctx, acct.ID, claimed)
		if err != nil {
			return Decision{}, err
		}
		latest = r
	}

	dec, err := Authorize(acct, claimed, latest)

	fields := map[string]string{
		"account_id": acct.ID,
		"device_id":  claimed,
	}
	if err != nil {
		fields["result"] = "denied"
		fields["error_code"] = domainCode(err)
	} else {
		fields["result"] = "allowed"
		fields["outcome"] = string(dec.Outcome)
	}
	if latest != nil {
		fields["request_id"] = latest.ID
	}
	s.audit("device.authorize", fields)

	return dec, err
}

type SubmitInput struct {
	AccountID        string
	PreviousDeviceID string
	NewDeviceID      string
	Reason           string
}

// Submit records a new pending request. Existing pending requests for the
// same account are left alone; the newest one is what logins look at.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (domain.DeviceChangeRequest, error) {
	const action = "device.change_request.submit"

	in.AccountID = strings.TrimSpace(in.AccountID)
	in.PreviousDeviceID = domain.NormalizeDeviceID(in.PreviousDeviceID)
	in.NewDeviceID = domain.NormalizeDeviceID(in.NewDeviceID)
	in.Reason = strings.TrimSpace(in.Reason)

	audit := func(result string, err error, extra map[string]string) {
		fields := map[string]string{
			"account_id":    in.AccountID,
			"new_device_id": in.NewDeviceID,
			"result":        result,
		}
		if err != nil {
			fields["error_code"] = domainCode(err)
		}
		for k, v := range extra {
			fields[k] = v
		}
		s.audit(action, fields)
	}

	for _, f := range []struct{ name, val string }{
		{"user_id", in.AccountID},
		{"previous_device_id", in.PreviousDeviceID},
		{"new_device_id", in.NewDeviceID},
		{"reason", in.Reason},
	} {
		if f.val == "" {
			err := domain.ErrMissingField(f.name)
			audit("error", err, nil)
			return domain.DeviceChangeRequest{}, err
		}
	}

	if _, err := s.accounts.GetByID(ctx, in.AccountID); err != nil {
		audit("error", err, nil)
		return domain.DeviceChangeRequest{}, err
	}

	now := s.now()
	created, err := s.requests.Create(ctx, domain.DeviceChangeRequest{
		ID:               s.newID(),
		AccountID:        in.AccountID,
		PreviousDeviceID: in.PreviousDeviceID,
		NewDeviceID:      in.NewDeviceID,
		Reason:           in.Reason,
		Status:           domain.DeviceChangePending,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		audit("error", err, nil)
		return domain.DeviceChangeRequest{}, err
	}

	audit("success", nil, map[string]string{"request_id": created.ID})
	return created, nil
}

// Resolve applies an admin decision. The account is not touched here; an
// approved device is bound the first time the user logs in with it.
func (s *Service) Resolve(ctx context.Context, requestID, reviewerID, decision string) (domain.DeviceChangeRequest, error) {
	const action = "device.change_request.resolve"

	requestID = strings.TrimSpace(requestID)
	reviewerID = strings.TrimSpace(reviewerID)

	audit := func(result string, err error, extra map[string]string) {
		fields := map[string]string{
			"request_id":  requestID,
			"reviewer_id": reviewerID,
			"decision":    decision,
			"result":      result,
		}
		if err != nil {
			fields["error_code"] = domainCode(err)
		}
		for k, v := range extra {
			fields[k] = v
		}
		s.audit(action, fields)
	}

	act, err := domain.ParseReviewAction(decision)
	if err != nil {
		audit("error", err, nil)
		return domain.DeviceChangeRequest{}, err
	}
	if requestID == "" {
		err := domain.ErrMissingField("request_id")
		audit("error", err, nil)
		return domain.DeviceChangeRequest{}, err
	}
	if reviewerID == "" {
		err := domain.ErrMissingField("admin_id")
		audit("error", err, nil)
		return domain.DeviceChangeRequest{}, err
	}

	current, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		audit("error", err, nil)
		return domain.DeviceChangeRequest{}, err
	}
	if current.Status.IsTerminal() && !s.policy.AllowReResolve {
		err := domain.ErrDeviceChangeAlreadyResolved(string(current.Status))
		audit("error", err, nil)
		return domain.DeviceChangeRequest{}, err
	}

	updated, err := s.requests.Resolve(ctx, requestID, domain.DeviceChangeResolution{
		Status:        act.Status(),
		ReviewedBy:    reviewerID,
		ReviewedAt:    s.now(),
		OnlyIfPending: !s.policy.AllowReResolve,
	})
	if err != nil {
		audit("error", err, nil)
		return domain.DeviceChangeRequest{}, err
	}

	extra := map[string]string{
		"account_id":      updated.AccountID,
		"status":          string(updated.Status),
		"previous_status": string(current.Status),
	}
	if err := s.notify(ctx, updated); err != nil {
		extra["notify_error"] = domainCode(err)
	}
	audit("success", nil, extra)
	return updated, nil
}

// notify is best effort: the decision is already stored.
func (s *Service) notify(ctx context.Context, r domain.DeviceChangeRequest) error {
	if s.pub == nil {
		return nil
	}
	acct, err := s.accounts.GetByID(ctx, r.AccountID)
	if err != nil {
		return err
	}
	var at time.Time
	if r.ReviewedAt != nil {
		at = *r.ReviewedAt
	}
	return s.pub.PublishDeviceChangeDecided(ctx, DecisionEvent{
		RequestID:   r.ID,
		AccountID:   r.AccountID,
		Email:       acct.Email,
		NewDeviceID: r.NewDeviceID,
		Status:      string(r.Status),
		ReviewedBy:  r.ReviewedBy,
		ReviewedAt:  at,
	})
}

func (s *Service) Get(ctx context.Context, id string) (domain.DeviceChangeRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.DeviceChangeRequest{}, domain.ErrMissingField("request_id")
	}
	return s.requests.GetByID(ctx, id)
}

// List returns requests newest first together with the total match count.
func (s *Service) List(ctx context.Context, f domain.DeviceChangeFilter) ([]domain.DeviceChangeRequest, int, error) {
	if f.Status != "" && !domain.IsValidDeviceChangeStatus(string(f.Status)) {
		return nil, 0, domain.ErrInvalidField("status", "must be pending, approved or rejected")
	}
	if f.Offset < 0 {
		return nil, 0, domain.ErrInvalidField("offset", "must be >= 0")
	}
	f.Limit = PageLimit(f.Limit)
	return s.requests.List(ctx, f)
}

// PageLimit applies the listing default and cap to a requested page size.
func PageLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	}
	return n
}

// LatestForAccount is the newest request for the account on any device, or nil.
func (s *Service) LatestForAccount(ctx context.Context, accountID string) (*domain.DeviceChangeRequest, error) {
	return s.requests.FindLatestByAccount(ctx, accountID)
}

func domainCode(err error) string {
	if err == nil {
		return ""
	}
	if de, ok := err.(*domain.Error); ok {
		return de.Code
	}
	return "non_domain_error"
}
