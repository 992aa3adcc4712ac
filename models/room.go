package models

import (
	"time"
)

// User owns rooms. Users are managed outside this service; the control core
// only reads them to pick an owner for auto-provisioned rooms.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	IsAdmin   bool      `gorm:"index" json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

type Room struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	OwnerID   uint      `gorm:"index;not null" json:"ownerId"`
	Owner     *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SensorReading is one complete telemetry sample. Rows are append-only.
type SensorReading struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RoomID      uint      `gorm:"index:idx_reading_room_ts,priority:1;not null" json:"roomId"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Presence    bool      `json:"presence"`
	Timestamp   time.Time `gorm:"index:idx_reading_room_ts,priority:2;not null" json:"timestamp"`
}
