package device

import (
	"github.com/baechuer/lms-auth-service/internal/domain"
)

// Outcome labels why a login was let through.
type Outcome string

const (
	OutcomeFirstBind      Outcome = "first_bind"
	OutcomeMatch          Outcome = "match"
	OutcomeApprovedRebind Outcome = "approved_rebind"
)

// Decision is the result of Authorize.
// When Bind is set the caller must persist DeviceID on the account, and only
// after the password check has also passed.
type Decision struct {
	Outcome  Outcome
	Bind     bool
	DeviceID string
	Request  *domain.DeviceChangeRequest
}

// Authorize decides whether claimedDeviceID may be used to log into acct.
// latest is the most recent change request for (acct, claimedDeviceID), or nil.
// It never touches storage; a request for another account or device is ignored.
func Authorize(acct domain.Account, claimedDeviceID string, latest *domain.DeviceChangeRequest) (Decision, error) {
	claimed := domain.NormalizeDeviceID(claimedDeviceID)
	if claimed == "" {
		return Decision{}, domain.ErrMissingField("device_id")
	}

	if !acct.HasBoundDevice() {
		return Decision{Outcome: OutcomeFirstBind, Bind: true, DeviceID: claimed}, nil
	}
	if domain.SameDevice(acct.BoundDeviceID, claimed) {
		return Decision{Outcome: OutcomeMatch, DeviceID: domain.NormalizeDeviceID(acct.BoundDeviceID)}, nil
	}

	if latest == nil || latest.AccountID != acct.ID || !domain.SameDevice(latest.NewDeviceID, claimed) {
		return Decision{}, domain.ErrUnauthorizedDevice()
	}

	switch latest.Status {
	case domain.DeviceChangeApproved:
		return Decision{Outcome: OutcomeApprovedRebind, Bind: true, DeviceID: claimed, Request: latest}, nil
	case domain.DeviceChangePending:
		return Decision{}, domain.ErrDeviceChangePending()
	case domain.DeviceChangeRejected:
		return Decision{}, domain.ErrDeviceChangeRejected()
	default:
		return Decision{}, domain.ErrUnauthorizedDevice()
	}
}
