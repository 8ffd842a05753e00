package domain

import "time"

// PendingRegistration holds a signup until its emailed code is confirmed.
// One per email; a newer signup replaces it.
type PendingRegistration struct {
	Email        string
	PasswordHash string
	DeviceID     string
	OTP          string
	Attempts     int
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

func (p PendingRegistration) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
