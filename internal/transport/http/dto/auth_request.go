package dto

import "strings"

// -------- Signup --------

type SignupRequest struct {
	Email    string `json:"email" validate:"required,max=254,email"`
	Password string `json:"password" validate:"required,max=72"`
	DeviceID string `json:"device_id" validate:"required,notblank,max=128"`
}

func (r *SignupRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return Validate(r)
}

type VerifySignupRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,max=10"`
}

func (r *VerifySignupRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.OTP = strings.TrimSpace(r.OTP)
	return Validate(r)
}

// -------- Login --------

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	DeviceID string `json:"device_id" validate:"required,notblank,max=128"`
}

func (r *LoginRequest) Validate() error { return Validate(r) }

type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *AdminLoginRequest) Validate() error { return Validate(r) }

// RefreshRequest may be empty when the refresh token travels in the cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// -------- Passwords --------

type PasswordForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *PasswordForgotRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return Validate(r)
}

type PasswordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

func (r *PasswordResetRequest) Validate() error { return Validate(r) }

type PasswordChangeRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}

func (r *PasswordChangeRequest) Validate() error { return Validate(r) }

// -------- Admin --------

type CreateAdminRequest struct {
	Email    string `json:"email" validate:"required,max=254,email"`
	Password string `json:"password" validate:"required,max=72"`
}

func (r *CreateAdminRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return Validate(r)
}
