package auth

import (
	"context"

	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

// RequestDeviceChange is for a learner stuck on a new device: they cannot
// log in there, so they prove who they are with email and password instead
// of a bearer token. previousDeviceID defaults to the bound device.
func (s *Service) RequestDeviceChange(ctx context.Context, email, password, previousDeviceID, newDeviceID, reason string) (domain.DeviceChangeRequest, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return domain.DeviceChangeRequest{}, domain.ErrInvalidCredentials()
	}

	acct, err := s.authenticate(ctx, email, password)
	if err != nil {
		return domain.DeviceChangeRequest{}, err
	}
	if previousDeviceID == "" {
		previousDeviceID = acct.BoundDeviceID
	}

	return s.devices.Submit(ctx, device.SubmitInput{
		AccountID:        acct.ID,
		PreviousDeviceID: previousDeviceID,
		NewDeviceID:      newDeviceID,
		Reason:           reason,
	})
}

// SubmitDeviceChange files a request for an already authenticated account.
// previousDeviceID defaults to the bound device.
func (s *Service) SubmitDeviceChange(ctx context.Context, accountID, previousDeviceID, newDeviceID, reason string) (domain.DeviceChangeRequest, error) {
	if accountID == "" {
		return domain.DeviceChangeRequest{}, domain.ErrTokenMissing()
	}
	if domain.NormalizeDeviceID(previousDeviceID) == "" {
		acct, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return domain.DeviceChangeRequest{}, err
		}
		previousDeviceID = acct.BoundDeviceID
	}
	return s.devices.Submit(ctx, device.SubmitInput{
		AccountID:        accountID,
		PreviousDeviceID: previousDeviceID,
		NewDeviceID:      newDeviceID,
		Reason:           reason,
	})
}

// MyDeviceChanges lists the caller's own requests, newest first.
func (s *Service) MyDeviceChanges(ctx context.Context, accountID string, limit, offset int) ([]domain.DeviceChangeRequest, int, error) {
	if accountID == "" {
		return nil, 0, domain.ErrTokenMissing()
	}
	return s.devices.List(ctx, domain.DeviceChangeFilter{AccountID: accountID, Limit: limit, Offset: offset})
}
