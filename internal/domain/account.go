package domain

import (
	"strings"
	"time"
)

// Account is a learner or admin identity.
// BoundDeviceID == "" means no device has been bound yet.
// Version is bumped on every device bind and is used as the compare-and-swap token.
type Account struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             string
	BoundDeviceID    string
	ProfileCompleted bool
	Locked           bool
	Version          int64
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (a Account) HasBoundDevice() bool {
	return NormalizeDeviceID(a.BoundDeviceID) != ""
}

func (a Account) IsAdmin() bool {
	return a.Role == string(RoleAdmin)
}

// NormalizeEmail lowercases and trims; emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeDeviceID trims surrounding whitespace. Case is kept as supplied
// and comparisons go through SameDevice.
func NormalizeDeviceID(id string) string {
	return strings.TrimSpace(id)
}

// SameDevice compares device identifiers trimmed and case-insensitively.
func SameDevice(a, b string) bool {
	return strings.EqualFold(NormalizeDeviceID(a), NormalizeDeviceID(b))
}
