package interfaces

import (
	"context"
	"time"

	"ecoheat/models"
)

// ReadingRepositoryInterface defines the contract for sensor reading storage.
type ReadingRepositoryInterface interface {
	// CreateReading appends a complete reading.
	CreateReading(ctx context.Context, reading *models.SensorReading) error

	// GetLatestReading retrieves the most recent reading of a room.
	GetLatestReading(ctx context.Context, roomID uint) (*models.SensorReading, error)

	// ListReadings returns readings in [start, end], most recent first.
	ListReadings(ctx context.Context, roomID uint, start, end time.Time, limit int) ([]models.SensorReading, error)
}
