package dto

import (
	"time"

	"github.com/baechuer/lms-auth-service/internal/application/device"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

type DeviceChangeView struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	PreviousDeviceID string     `json:"previous_device_id"`
	NewDeviceID      string     `json:"new_device_id"`
	Reason           string     `json:"reason"`
	Status           string     `json:"status"`
	ReviewedBy       string     `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func NewDeviceChangeView(r domain.DeviceChangeRequest) DeviceChangeView {
	return DeviceChangeView{
		ID:               r.ID,
		AccountID:        r.AccountID,
		PreviousDeviceID: r.PreviousDeviceID,
		NewDeviceID:      r.NewDeviceID,
		Reason:           r.Reason,
		Status:           string(r.Status),
		ReviewedBy:       r.ReviewedBy,
		ReviewedAt:       r.ReviewedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type DeviceChangeListData struct {
	Items  []DeviceChangeView `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func NewDeviceChangeListData(items []domain.DeviceChangeRequest, total int, f domain.DeviceChangeFilter) DeviceChangeListData {
	views := make([]DeviceChangeView, 0, len(items))
	for _, it := range items {
		views = append(views, NewDeviceChangeView(it))
	}
	return DeviceChangeListData{Items: views, Total: total, Limit: device.PageLimit(f.Limit), Offset: f.Offset}
}
