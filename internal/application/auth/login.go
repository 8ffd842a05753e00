package auth

import (
	"context"

	"github.com/baechuer/lms-auth-service/internal/domain"
	"github.com/baechuer/lms-auth-service/internal/logger"
)

// Login authenticates a learner from a specific device and issues tokens.
//
// Order matters:
//  1. unknown email and wrong password both answer invalid_credentials
//  2. device state is only evaluated once the password matched
//  3. a bind instruction from the guard is written with a version check,
//     before any token exists
func (s *Service) Login(ctx context.Context, email, password, deviceID string) (LoginResult, error) {
	email = domain.NormalizeEmail(email)
	deviceID = domain.NormalizeDeviceID(deviceID)

	audit := s.auditor("auth.login", map[string]string{
		"email":     email,
		"device_id": deviceID,
	})

	if email == "" || password == "" {
		err := domain.ErrInvalidCredentials()
		audit("error", err, nil)
		return LoginResult{}, err
	}
	if deviceID == "" {
		err := domain.ErrMissingField("device_id")
		audit("error", err, nil)
		return LoginResult{}, err
	}

	acct, err := s.authenticate(ctx, email, password)
	if err != nil {
		audit("error", err, nil)
		return LoginResult{}, err
	}
	if acct.IsAdmin() {
		// admins sign in through AdminLogin and are not device bound
		err := domain.ErrInvalidCredentials()
		audit("error", err, map[string]string{"account_id": acct.ID})
		return LoginResult{}, err
	}

	dec, err := s.devices.Check(ctx, acct, deviceID)
	if err != nil {
		audit("error", err, map[string]string{"account_id": acct.ID})
		return LoginResult{}, err
	}

	if dec.Bind {
		bound, err := s.accounts.BindDevice(ctx, acct.ID, dec.DeviceID, acct.Version)
		if err != nil {
			audit("error", err, map[string]string{"account_id": acct.ID, "outcome": string(dec.Outcome)})
			return LoginResult{}, err
		}
		s.audit("auth.device_bound", map[string]string{
			"account_id":      acct.ID,
			"previous_device": acct.BoundDeviceID,
			"device_id":       bound.BoundDeviceID,
			"outcome":         string(dec.Outcome),
		})
		acct = bound
	}

	toks, err := s.issueTokens(ctx, acct.ID, acct.Role)
	if err != nil {
		audit("error", err, map[string]string{"account_id": acct.ID})
		return LoginResult{}, err
	}

	now := s.now()
	if err := s.accounts.TouchLastLogin(ctx, acct.ID, now); err != nil {
		// the session is already issued; a stale last_login_at is tolerable
		logger.WithCtx(ctx).Warn().Err(err).Str("account_id", acct.ID).Msg("record last login failed")
	} else {
		acct.LastLoginAt = &now
	}

	res := LoginResult{Account: acct, Tokens: toks}
	latest, err := s.devices.LatestForAccount(ctx, acct.ID)
	if err != nil {
		audit("error", err, map[string]string{"account_id": acct.ID})
		return LoginResult{}, err
	}
	if latest != nil {
		res.DeviceChangeRequestStatus = string(latest.Status)
	}

	audit("success", nil, map[string]string{"account_id": acct.ID, "outcome": string(dec.Outcome)})
	return res, nil
}

// authenticate resolves the account and checks the password, hiding which
// of the two failed. Store outages are returned as-is.
func (s *Service) authenticate(ctx context.Context, email, password string) (domain.Account, error) {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return domain.Account{}, domain.ErrInvalidCredentials()
		}
		return domain.Account{}, err
	}
	if err := s.hasher.Compare(acct.PasswordHash, password); err != nil {
		return domain.Account{}, domain.ErrInvalidCredentials()
	}
	if acct.Locked {
		return domain.Account{}, domain.ErrAccountLocked()
	}
	return acct, nil
}

// AdminLogin signs in an admin. No device gate applies.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (LoginResult, error) {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("auth.admin_login", map[string]string{"email": email})

	if email == "" || password == "" {
		err := domain.ErrInvalidCredentials()
		audit("error", err, nil)
		return LoginResult{}, err
	}

	acct, err := s.authenticate(ctx, email, password)
	if err != nil {
		audit("error", err, nil)
		return LoginResult{}, err
	}
	if !acct.IsAdmin() {
		err := domain.ErrInvalidCredentials()
		audit("error", err, map[string]string{"account_id": acct.ID})
		return LoginResult{}, err
	}

	toks, err := s.issueTokens(ctx, acct.ID, acct.Role)
	if err != nil {
		audit("error", err, map[string]string{"account_id": acct.ID})
		return LoginResult{}, err
	}
	now := s.now()
	if err := s.accounts.TouchLastLogin(ctx, acct.ID, now); err != nil {
		logger.WithCtx(ctx).Warn().Err(err).Str("account_id", acct.ID).Msg("record last login failed")
	} else {
		acct.LastLoginAt = &now
	}

	audit("success", nil, map[string]string{"account_id": acct.ID})
	return LoginResult{Account: acct, Tokens: toks}, nil
}
