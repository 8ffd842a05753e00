// Package contracts holds the message shapes shared by the api publisher and
// the notifier. Consumers ignore unknown fields.
package contracts

import "time"

const (
	RKRegistrationOTP     = "auth.registration.otp"
	RKPasswordReset       = "auth.password.reset"
	RKDeviceChangeDecided = "auth.device_change.decided"

	// NotifierBindKey covers every routing key above.
	NotifierBindKey = "auth.#"
)

type RegistrationOTPPayload struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PasswordResetPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	URL    string `json:"url"`
}

type DeviceChangeDecidedPayload struct {
	RequestID   string    `json:"request_id"`
	AccountID   string    `json:"account_id"`
	Email       string    `json:"email"`
	NewDeviceID string    `json:"new_device_id"`
	Status      string    `json:"status"` // approved | rejected
	ReviewedBy  string    `json:"reviewed_by"`
	ReviewedAt  time.Time `json:"reviewed_at"`
}
