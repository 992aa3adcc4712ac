package devicestate

import (
	"time"

	"ecoheat/models"
)

// DeviceState is the in-process view of a room's actuators and control
// authority.
type DeviceState struct {
	RoomID       uint
	ValveOn      bool
	FanOn        bool
	HeatingMode  models.ControlMode
	FanMode      models.ControlMode
	BatteryLevel int
	LinkQuality  models.LinkQuality
	LastUpdated  time.Time
}

// Default is the state of a room nobody has reported on yet.
func Default(roomID uint) DeviceState {
	return fromModel(models.NewDefaultDeviceStatus(roomID))
}

// BothManual reports whether the schedule has no authority over either
// actuator.
func (s DeviceState) BothManual() bool {
	return s.HeatingMode == models.ControlModeManual && s.FanMode == models.ControlModeManual
}

func (s DeviceState) Model() models.DeviceStatus {
	return models.DeviceStatus{
		RoomID:             s.RoomID,
		ValveOn:            s.ValveOn,
		FanOn:              s.FanOn,
		HeatingControlMode: s.HeatingMode,
		FanControlMode:     s.FanMode,
		BatteryLevel:       s.BatteryLevel,
		LinkQuality:        s.LinkQuality,
		LastUpdated:        s.LastUpdated,
	}
}

func fromModel(m models.DeviceStatus) DeviceState {
	return DeviceState{
		RoomID:       m.RoomID,
		ValveOn:      m.ValveOn,
		FanOn:        m.FanOn,
		HeatingMode:  m.HeatingControlMode,
		FanMode:      m.FanControlMode,
		BatteryLevel: m.BatteryLevel,
		LinkQuality:  m.LinkQuality,
		LastUpdated:  m.LastUpdated,
	}
}

// Patch is a field-level update. Nil fields are left alone.
type Patch struct {
	ValveOn      *bool
	FanOn        *bool
	HeatingMode  *models.ControlMode
	FanMode      *models.ControlMode
	BatteryLevel *int
	LinkQuality  *models.LinkQuality
}

func (p Patch) IsEmpty() bool {
	return p.ValveOn == nil && p.FanOn == nil && p.HeatingMode == nil &&
		p.FanMode == nil && p.BatteryLevel == nil && p.LinkQuality == nil
}

// Apply returns s with the patch applied and whether any field changed.
func (p Patch) Apply(s DeviceState) (DeviceState, bool) {
	changed := false
	if p.ValveOn != nil && *p.ValveOn != s.ValveOn {
		s.ValveOn, changed = *p.ValveOn, true
	}
	if p.FanOn != nil && *p.FanOn != s.FanOn {
		s.FanOn, changed = *p.FanOn, true
	}
	if p.HeatingMode != nil && *p.HeatingMode != s.HeatingMode {
		s.HeatingMode, changed = *p.HeatingMode, true
	}
	if p.FanMode != nil && *p.FanMode != s.FanMode {
		s.FanMode, changed = *p.FanMode, true
	}
	if p.BatteryLevel != nil && *p.BatteryLevel != s.BatteryLevel {
		s.BatteryLevel, changed = *p.BatteryLevel, true
	}
	if p.LinkQuality != nil && *p.LinkQuality != s.LinkQuality {
		s.LinkQuality, changed = *p.LinkQuality, true
	}
	return s, changed
}

func Bool(b bool) *bool { return &b }
func Int(n int) *int { return &n }
func Mode(m models.ControlMode) *models.ControlMode { return &m }
func Link(l models.LinkQuality) *models.LinkQuality { return &l }
