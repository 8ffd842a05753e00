package domain

import "time"

type DeviceChangeStatus string

const (
	DeviceChangePending  DeviceChangeStatus = "pending"
	DeviceChangeApproved DeviceChangeStatus = "approved"
	DeviceChangeRejected DeviceChangeStatus = "rejected"
)

// IsTerminal reports whether no further transition is expected.
func (s DeviceChangeStatus) IsTerminal() bool {
	return s == DeviceChangeApproved || s == DeviceChangeRejected
}

func IsValidDeviceChangeStatus(s string) bool {
	switch DeviceChangeStatus(s) {
	case DeviceChangePending, DeviceChangeApproved, DeviceChangeRejected:
		return true
	}
	return false
}

// ReviewAction is the admin decision on a pending request.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
)

// ParseReviewAction accepts exactly "approve" or "reject".
func ParseReviewAction(s string) (ReviewAction, error) {
	switch ReviewAction(s) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	}
	return "", ErrInvalidAction(s)
}

// Status is the terminal status an action leads to.
func (a ReviewAction) Status() DeviceChangeStatus {
	if a == ActionApprove {
		return DeviceChangeApproved
	}
	return DeviceChangeRejected
}

// DeviceChangeRequest is a user's ask to move their account to another device.
// Requests are never deleted; they double as the audit trail.
// Seq is assigned by the store and breaks CreatedAt ties.
type DeviceChangeRequest struct {
	ID               string
	AccountID        string
	PreviousDeviceID string
	NewDeviceID      string
	Reason           string
	Status           DeviceChangeStatus
	ReviewedBy       string
	ReviewedAt       *time.Time
	Seq              int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewerThan orders requests by creation: CreatedAt first, Seq on ties.
func (r DeviceChangeRequest) NewerThan(o DeviceChangeRequest) bool {
	if !r.CreatedAt.Equal(o.CreatedAt) {
		return r.CreatedAt.After(o.CreatedAt)
	}
	return r.Seq > o.Seq
}

// DeviceChangeResolution is the write applied when an admin decides.
// With OnlyIfPending the store refuses to touch a terminal request.
type DeviceChangeResolution struct {
	Status        DeviceChangeStatus
	ReviewedBy    string
	ReviewedAt    time.Time
	OnlyIfPending bool
}

// DeviceChangeFilter narrows admin and self listings.
type DeviceChangeFilter struct {
	Status    DeviceChangeStatus
	AccountID string
	Limit     int
	Offset    int
}
