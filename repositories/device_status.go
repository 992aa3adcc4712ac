package repositories

import (
	"context"
	"fmt"

	"ecoheat/models"
	"ecoheat/repositories/base"
	"ecoheat/repositories/interfaces"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceStatusRepository struct {
	crud *base.CRUDRepository[models.DeviceStatus]
}

func NewDeviceStatusRepository(db *gorm.DB) interfaces.DeviceStatusRepositoryInterface {
	return &DeviceStatusRepository{crud: base.NewCRUDRepository[models.DeviceStatus](db, "device_statuses")}
}

func (r *DeviceStatusRepository) GetDeviceStatus(ctx context.Context, roomID uint) (*models.DeviceStatus, error) {
	return r.crud.FirstWhere(ctx, "", fmt.Sprintf("room ID %d", roomID), "room_id = ?", roomID)
}

// SaveDeviceStatus upserts on room_id so concurrent first writes for a room
// still leave a single row.
func (r *DeviceStatusRepository) SaveDeviceStatus(ctx context.Context, status *models.DeviceStatus) error {
	if status.RoomID == 0 {
		return base.NewValidationError("room_id", "0", "device status needs a room")
	}
	err := r.crud.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"valve_on", "fan_on", "heating_control_mode", "fan_control_mode",
			"battery_level", "link_quality", "last_updated",
		}),
	}).Create(status).Error
	return base.WrapDBError("save", "device_statuses", err)
}
