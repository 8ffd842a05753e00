package device

import (
	"context"
	"time"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

/*
AccountReader
-------------
The device workflow only needs to confirm an account exists.
Binding is done by the auth service, which owns account writes.
*/
type AccountReader interface {
	GetByID(ctx context.Context, id string) (domain.Account, error)
}

/*
RequestRepo
-----------
Persistence port for device change requests.
- Create assigns Seq (monotonic) and CreatedAt.
- FindLatest* return (nil, nil) when nothing matches; order is CreatedAt DESC, Seq DESC.
- Resolve returns ErrDeviceChangeRequestNotFound for unknown ids and
  ErrDeviceChangeAlreadyResolved when OnlyIfPending is set and the row is terminal.
*/
type RequestRepo interface {
	Create(ctx context.Context, r domain.DeviceChangeRequest) (domain.DeviceChangeRequest, error)
	GetByID(ctx context.Context, id string) (domain.DeviceChangeRequest, error)
	FindLatestByAccountAndDevice(ctx context.Context, accountID, deviceID string) (*domain.DeviceChangeRequest, error)
	FindLatestByAccount(ctx context.Context, accountID string) (*domain.DeviceChangeRequest, error)
	Resolve(ctx context.Context, id string, res domain.DeviceChangeResolution) (domain.DeviceChangeRequest, error)
	List(ctx context.Context, f domain.DeviceChangeFilter) ([]domain.DeviceChangeRequest, int, error)
}

/*
DecisionPublisher
-----------------
Announces admin decisions so the notifier can email the account holder.
*/
type DecisionPublisher interface {
	PublishDeviceChangeDecided(ctx context.Context, evt DecisionEvent) error
}

type DecisionEvent struct {
	RequestID   string
	AccountID   string
	Email       string
	NewDeviceID string
	Status      string
	ReviewedBy  string
	ReviewedAt  time.Time
}
