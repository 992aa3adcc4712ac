package interfaces

import (
	"context"

	"ecoheat/models"
)

// ScheduleRepositoryInterface resolves room -> active schedule -> time slot.
type ScheduleRepositoryInterface interface {
	// GetActiveSchedule returns the active assignment of a room. With several
	// active assignments the lowest id wins.
	GetActiveSchedule(ctx context.Context, roomID uint) (*models.RoomSchedule, error)

	// FindTimeSlot returns the slot of the schedule on dayOfWeek (1..7) whose
	// [start, end] range contains clock ("HH:MM:SS"), bounds inclusive.
	FindTimeSlot(ctx context.Context, scheduleID uint, dayOfWeek int, clock string) (*models.TimeSlot, error)
}
