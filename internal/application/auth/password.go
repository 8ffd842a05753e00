package auth

import (
	"context"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

// PasswordChange changes password for an authenticated account and signs
// out every session.
func (s *Service) PasswordChange(ctx context.Context, accountID, oldPassword, newPassword string) error {
	audit := s.auditor("auth.password_change", map[string]string{"account_id": accountID})

	if accountID == "" {
		return domain.ErrTokenMissing()
	}
	if oldPassword == "" {
		return domain.ErrMissingField("old_password")
	}
	if newPassword == "" {
		return domain.ErrMissingField("new_password")
	}
	if err := s.checkPasswordPolicy(newPassword); err != nil {
		return err
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		audit("error", err, nil)
		return err
	}
	if err := s.hasher.Compare(acct.PasswordHash, oldPassword); err != nil {
		err := domain.ErrInvalidCredentials()
		audit("error", err, nil)
		return err
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.ErrHashFailed(err)
	}
	if err := s.accounts.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		audit("error", err, nil)
		return err
	}

	_ = s.sessions.RevokeAll(ctx, accountID)
	audit("success", nil, nil)
	return nil
}

// PasswordForgot mails a reset link. Unknown emails succeed silently so the
// endpoint cannot be used to probe for accounts.
func (s *Service) PasswordForgot(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.ErrMissingField("email")
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil
		}
		return err
	}

	token, err := newOpaqueToken(32)
	if err != nil {
		return domain.ErrRandomFailed(err)
	}
	if err := s.ott.Save(ctx, TokenPasswordReset, token, acct.ID, s.passwordResetTTL); err != nil {
		return err
	}

	s.audit("auth.password_forgot", map[string]string{"account_id": acct.ID, "result": "success"})
	return s.pub.PublishPasswordReset(ctx, PasswordResetEvent{
		UserID: acct.ID,
		Email:  acct.Email,
		URL:    s.passwordResetBaseURL + token,
	})
}

// PasswordReset consumes the token and sets a new password.
func (s *Service) PasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return domain.ErrMissingField("token")
	}
	if newPassword == "" {
		return domain.ErrMissingField("new_password")
	}
	if err := s.checkPasswordPolicy(newPassword); err != nil {
		return err
	}

	accountID, err := s.ott.Consume(ctx, TokenPasswordReset, token)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return domain.ErrHashFailed(err)
	}
	if err := s.accounts.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return err
	}

	_ = s.sessions.RevokeAll(ctx, accountID)
	s.audit("auth.password_reset", map[string]string{"account_id": accountID, "result": "success"})
	return nil
}
