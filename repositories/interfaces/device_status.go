package interfaces

import (
	"context"

	"ecoheat/models"
)

// DeviceStatusRepositoryInterface defines the contract for the one-row-per-room
// device status table.
type DeviceStatusRepositoryInterface interface {
	GetDeviceStatus(ctx context.Context, roomID uint) (*models.DeviceStatus, error)

	// SaveDeviceStatus inserts or replaces the row keyed by RoomID.
	SaveDeviceStatus(ctx context.Context, status *models.DeviceStatus) error
}
