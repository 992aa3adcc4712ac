package models

import (
	"time"
)

// Schedule groups weekly time slots. Schedules are authored through the
// CRUD API; the decision loop only reads them.
type Schedule struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description"`
	TimeSlots   []TimeSlot `gorm:"foreignKey:ScheduleID" json:"timeSlots,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// RoomSchedule assigns a schedule to a room. At most one assignment per room
// is active at a time.
type RoomSchedule struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomID     uint      `gorm:"index:idx_room_schedule_active,priority:1;not null" json:"roomId"`
	ScheduleID uint      `gorm:"index;not null" json:"scheduleId"`
	Schedule   *Schedule `gorm:"foreignKey:ScheduleID" json:"schedule,omitempty"`
	IsActive   bool      `gorm:"index:idx_room_schedule_active,priority:2;not null" json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TimeSlot holds the setpoint and actuator flags for one day-of-week and
// wall-clock range. DayOfWeek is 1 (Monday) through 7 (Sunday); StartTime and
// EndTime are "HH:MM:SS" so they compare lexically.
type TimeSlot struct {
	ID                 uint    `gorm:"primaryKey" json:"id"`
	ScheduleID         uint    `gorm:"index:idx_slot_lookup,priority:1;not null" json:"scheduleId"`
	DayOfWeek          int     `gorm:"index:idx_slot_lookup,priority:2;not null" json:"dayOfWeek"`
	StartTime          string  `gorm:"size:8;not null" json:"startTime"`
	EndTime            string  `gorm:"size:8;not null" json:"endTime"`
	DesiredTemperature float64 `gorm:"not null" json:"desiredTemperature"`
	IsHeatingActive    bool    `gorm:"not null" json:"isHeatingActive"`
	IsFanActive        bool    `gorm:"not null" json:"isFanActive"`
}

// ClockLayout is the layout of TimeSlot.StartTime and TimeSlot.EndTime.
const ClockLayout = "15:04:05"

// ISODayOfWeek maps time.Weekday onto the 1..7 Monday-first numbering used
// by TimeSlot.
func ISODayOfWeek(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
