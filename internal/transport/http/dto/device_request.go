package dto

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

// CredentialDeviceChangeRequest is filed by a learner who cannot log in from
// the new device, so it carries credentials instead of a bearer token.
type CredentialDeviceChangeRequest struct {
	Email            string `json:"email" validate:"required"`
	Password         string `json:"password" validate:"required"`
	PreviousDeviceID string `json:"previous_device_id" validate:"max=128"`
	NewDeviceID      string `json:"new_device_id" validate:"required,notblank,max=128"`
	Reason           string `json:"reason" validate:"required,notblank,max=500"`
}

func (r *CredentialDeviceChangeRequest) Validate() error { return Validate(r) }

type DeviceChangeSubmitRequest struct {
	PreviousDeviceID string `json:"previous_device_id" validate:"max=128"`
	NewDeviceID      string `json:"new_device_id" validate:"required,notblank,max=128"`
	Reason           string `json:"reason" validate:"required,notblank,max=500"`
}

func (r *DeviceChangeSubmitRequest) Validate() error { return Validate(r) }

type ResolveDeviceChangeRequest struct {
	Action string `json:"action" validate:"required,notblank"`
}

func (r *ResolveDeviceChangeRequest) Validate() error { return Validate(r) }

// ParseDeviceChangeListQuery reads status, account_id, limit and offset.
// Defaults and the limit cap are applied by the device service.
func ParseDeviceChangeListQuery(q url.Values) (domain.DeviceChangeFilter, error) {
	f := domain.DeviceChangeFilter{
		Status:    domain.DeviceChangeStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		AccountID: strings.TrimSpace(q.Get("account_id")),
	}
	if f.Status != "" && !domain.IsValidDeviceChangeStatus(string(f.Status)) {
		return f, domain.ErrInvalidField("status", "must be pending, approved or rejected")
	}

	var err error
	if f.Limit, err = intParam(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.ErrInvalidField(name, "must be a non-negative integer")
	}
	return n, nil
}
