package models

import (
	"fmt"
	"time"
)

// ControlMode decides who has authority over an actuator.
type ControlMode string

const (
	ControlModeManual   ControlMode = "manual"
	ControlModeSchedule ControlMode = "schedule"
)

// ParseControlMode accepts the two known modes and nothing else.
func ParseControlMode(s string) (ControlMode, error) {
	switch ControlMode(s) {
	case ControlModeManual, ControlModeSchedule:
		return ControlMode(s), nil
	default:
		return "", fmt.Errorf("invalid control mode %q (expected manual or schedule)", s)
	}
}

// LinkQuality is the device-reported network signal class.
type LinkQuality string

const (
	LinkStable   LinkQuality = "stable"
	LinkWeak     LinkQuality = "weak"
	LinkUnstable LinkQuality = "unstable"
)

// DeviceStatus is the persisted actuator and control state of a room.
// There is exactly one row per room.
type DeviceStatus struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	RoomID             uint        `gorm:"uniqueIndex;not null" json:"roomId"`
	ValveOn            bool        `gorm:"not null" json:"valveOn"`
	FanOn              bool        `gorm:"not null" json:"fanOn"`
	HeatingControlMode ControlMode `gorm:"size:16;not null;default:schedule" json:"heatingControlMode"`
	FanControlMode     ControlMode `gorm:"size:16;not null;default:schedule" json:"fanControlMode"`
	BatteryLevel       int         `gorm:"not null" json:"batteryLevel"`
	LinkQuality        LinkQuality `gorm:"size:16;not null;default:stable" json:"linkQuality"`
	LastUpdated        time.Time   `json:"lastUpdated"`
}

// NewDefaultDeviceStatus returns the state a room starts in: both actuators
// off, both modes under schedule authority, full battery, stable link.
func NewDefaultDeviceStatus(roomID uint) DeviceStatus {
	return DeviceStatus{
		RoomID:             roomID,
		ValveOn:            false,
		FanOn:              false,
		HeatingControlMode: ControlModeSchedule,
		FanControlMode:     ControlModeSchedule,
		BatteryLevel:       100,
		LinkQuality:        LinkStable,
	}
}
