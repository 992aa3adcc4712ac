package repositories

import (
	"context"
	"fmt"
	"time"

	"ecoheat/models"
	"ecoheat/repositories/base"
	"ecoheat/repositories/interfaces"

	"gorm.io/gorm"
)

type ReadingRepository struct {
	crud *base.CRUDRepository[models.SensorReading]
}

func NewReadingRepository(db *gorm.DB) interfaces.ReadingRepositoryInterface {
	return &ReadingRepository{crud: base.NewCRUDRepository[models.SensorReading](db, "sensor_readings")}
}

func (r *ReadingRepository) CreateReading(ctx context.Context, reading *models.SensorReading) error {
	if reading.RoomID == 0 {
		return base.NewValidationError("room_id", "0", "reading needs a room")
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}
	return r.crud.Create(ctx, reading)
}

func (r *ReadingRepository) GetLatestReading(ctx context.Context, roomID uint) (*models.SensorReading, error) {
	return r.crud.FirstWhere(ctx, "timestamp desc, id desc", fmt.Sprintf("room ID %d", roomID), "room_id = ?", roomID)
}

func (r *ReadingRepository) ListReadings(ctx context.Context, roomID uint, start, end time.Time, limit int) ([]models.SensorReading, error) {
	var readings []models.SensorReading
	query := r.crud.DB(ctx).
		Where("room_id = ? AND timestamp >= ? AND timestamp <= ?", roomID, start, end).
		Order("timestamp desc, id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&readings).Error; err != nil {
		return nil, base.WrapDBError("list", "sensor_readings", err)
	}
	return readings, nil
}
