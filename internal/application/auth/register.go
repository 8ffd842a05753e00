package auth

import (
	"context"
	"crypto/subtle"
	"net/mail"

	"github.com/google/uuid"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

// Signup parks the registration and mails a one-time code.
// The account only exists once VerifySignup succeeds.
func (s *Service) Signup(ctx context.Context, email, password, deviceID string) (SignupResult, error) {
	email = domain.NormalizeEmail(email)
	deviceID = domain.NormalizeDeviceID(deviceID)
	audit := s.auditor("auth.signup", map[string]string{"email": email, "device_id": deviceID})

	if err := validateSignup(email, password, deviceID); err != nil {
		audit("error", err, nil)
		return SignupResult{}, err
	}
	if err := s.checkPasswordPolicy(password); err != nil {
		audit("error", err, nil)
		return SignupResult{}, err
	}

	_, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		err := domain.ErrEmailAlreadyExists()
		audit("error", err, nil)
		return SignupResult{}, err
	case domain.KindOf(err) != domain.KindNotFound:
		audit("error", err, nil)
		return SignupResult{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		err := domain.ErrHashFailed(err)
		audit("error", err, nil)
		return SignupResult{}, err
	}
	code, err := s.codes.NewCode()
	if err != nil {
		err := domain.ErrRandomFailed(err)
		audit("error", err, nil)
		return SignupResult{}, err
	}

	now := s.now()
	p := domain.PendingRegistration{
		Email:        email,
		PasswordHash: hash,
		DeviceID:     deviceID,
		OTP:          code,
		ExpiresAt:    now.Add(s.otpTTL),
		CreatedAt:    now,
	}
	if err := s.pending.Put(ctx, p, s.otpTTL); err != nil {
		audit("error", err, nil)
		return SignupResult{}, err
	}

	if err := s.pub.PublishRegistrationOTP(ctx, RegistrationOTPEvent{
		Email:     email,
		Code:      code,
		ExpiresAt: p.ExpiresAt,
	}); err != nil {
		audit("error", err, nil)
		return SignupResult{}, err
	}

	audit("success", nil, nil)
	return SignupResult{Email: email, ExpiresAt: p.ExpiresAt}, nil
}

// VerifySignup turns a pending registration into an account bound to the
// device it signed up from.
func (s *Service) VerifySignup(ctx context.Context, email, code string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("auth.signup_verify", map[string]string{"email": email})

	if email == "" {
		err := domain.ErrMissingField("email")
		audit("error", err, nil)
		return domain.Account{}, err
	}
	if code == "" {
		err := domain.ErrMissingField("otp")
		audit("error", err, nil)
		return domain.Account{}, err
	}

	p, err := s.pending.Get(ctx, email)
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}

	if p.Expired(s.now()) {
		_ = s.pending.Delete(ctx, email)
		err := domain.ErrOTPExpired()
		audit("error", err, nil)
		return domain.Account{}, err
	}

	if subtle.ConstantTimeCompare([]byte(p.OTP), []byte(code)) != 1 {
		attempts, aerr := s.pending.IncrementAttempts(ctx, email)
		if aerr == nil && attempts >= s.otpMaxAttempts {
			_ = s.pending.Delete(ctx, email)
		}
		err := domain.ErrOTPInvalid()
		audit("error", err, nil)
		return domain.Account{}, err
	}

	now := s.now()
	created, err := s.accounts.Create(ctx, domain.Account{
		ID:            uuid.NewString(),
		Email:         p.Email,
		PasswordHash:  p.PasswordHash,
		Role:          string(domain.RoleUser),
		BoundDeviceID: p.DeviceID,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}
	_ = s.pending.Delete(ctx, email)

	audit("success", nil, map[string]string{"account_id": created.ID})
	return created, nil
}

// CreateAdmin adds another admin. Only admins reach this (router + check here).
func (s *Service) CreateAdmin(ctx context.Context, actorID, actorRole, email, password string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("admin.create_admin", map[string]string{"actor_id": actorID, "email": email})

	if domain.RoleRank(actorRole) < domain.RoleRank(string(domain.RoleAdmin)) {
		err := domain.ErrInsufficientRole(string(domain.RoleAdmin))
		audit("error", err, nil)
		return domain.Account{}, err
	}
	if email == "" {
		err := domain.ErrMissingField("email")
		audit("error", err, nil)
		return domain.Account{}, err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		err := domain.ErrInvalidField("email", "invalid format")
		audit("error", err, nil)
		return domain.Account{}, err
	}
	if err := s.checkPasswordPolicy(password); err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		err := domain.ErrHashFailed(err)
		audit("error", err, nil)
		return domain.Account{}, err
	}

	now := s.now()
	created, err := s.accounts.Create(ctx, domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         string(domain.RoleAdmin),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}

	audit("success", nil, map[string]string{"account_id": created.ID})
	return created, nil
}

func validateSignup(email, password, deviceID string) error {
	if email == "" {
		return domain.ErrMissingField("email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.ErrInvalidField("email", "invalid format")
	}
	if password == "" {
		return domain.ErrMissingField("password")
	}
	if deviceID == "" {
		return domain.ErrMissingField("device_id")
	}
	return nil
}
