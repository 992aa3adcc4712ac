package repositories

import (
	"context"
	"fmt"

	"ecoheat/models"
	"ecoheat/repositories/base"
	"ecoheat/repositories/interfaces"

	"gorm.io/gorm"
)

type ScheduleRepository struct {
	assignments *base.CRUDRepository[models.RoomSchedule]
	slots       *base.CRUDRepository[models.TimeSlot]
}

func NewScheduleRepository(db *gorm.DB) interfaces.ScheduleRepositoryInterface {
	return &ScheduleRepository{
		assignments: base.NewCRUDRepository[models.RoomSchedule](db, "room_schedules"),
		slots:       base.NewCRUDRepository[models.TimeSlot](db, "time_slots"),
	}
}

func (r *ScheduleRepository) GetActiveSchedule(ctx context.Context, roomID uint) (*models.RoomSchedule, error) {
	return r.assignments.FirstWhere(ctx, "id asc", fmt.Sprintf("active schedule for room ID %d", roomID),
		"room_id = ? AND is_active = ?", roomID, true)
}

func (r *ScheduleRepository) FindTimeSlot(ctx context.Context, scheduleID uint, dayOfWeek int, clock string) (*models.TimeSlot, error) {
	return r.slots.FirstWhere(ctx, "start_time asc, id asc",
		fmt.Sprintf("schedule ID %d day %d at %s", scheduleID, dayOfWeek, clock),
		"schedule_id = ? AND day_of_week = ? AND start_time <= ? AND end_time >= ?",
		scheduleID, dayOfWeek, clock, clock)
}
