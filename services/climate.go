package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ecoheat/devicestate"
	"ecoheat/dispatcher"
	"ecoheat/models"
	"ecoheat/redis"
	"ecoheat/repositories/base"
)

type DeviceStateStore interface {
	GetOrCreate(ctx context.Context, roomID uint) (devicestate.DeviceState, error)
	Update(ctx context.Context, roomID uint, p devicestate.Patch) (devicestate.DeviceState, error)
}

type Actuators interface {
	SetValve(ctx context.Context, roomID uint, open bool) error
	SetFan(ctx context.Context, roomID uint, on bool) error
}

// DeviceSnapshots is the read side of the redis device status snapshot.
type DeviceSnapshots interface {
	GetDeviceStatus(ctx context.Context, roomID uint) (*models.DeviceStatus, error)
}

type RoomLookup interface {
	GetRoom(ctx context.Context, roomID uint) (*models.Room, error)
}

type LatestReadings interface {
	LatestReading(ctx context.Context, roomID uint) (*models.SensorReading, bool, error)
}

// RoomStatus is the current picture of a room for the operations API.
type RoomStatus struct {
	RoomID  uint                  `json:"roomId"`
	Name    string                `json:"name"`
	Reading *models.SensorReading `json:"reading"`
	Device  models.DeviceStatus   `json:"device"`
}

// ClimateService implements the manual control surface on top of the device
// state store and the command dispatcher.
type ClimateService struct {
	rooms     RoomLookup
	readings  LatestReadings
	store     DeviceStateStore
	snapshots DeviceSnapshots
	actuators Actuators
	logger    *slog.Logger
}

// NewClimateService creates a ClimateService. snapshots may be nil.
func NewClimateService(
	rooms RoomLookup,
	readings LatestReadings,
	store DeviceStateStore,
	snapshots DeviceSnapshots,
	actuators Actuators,
	logger *slog.Logger,
) *ClimateService {
	return &ClimateService{
		rooms:     rooms,
		readings:  readings,
		store:     store,
		snapshots: snapshots,
		actuators: actuators,
		logger:    logger.With("service", "climate_service"),
	}
}

func (cs *ClimateService) Status(ctx context.Context, roomID uint) (*RoomStatus, error) {
	room, err := cs.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	reading, _, err := cs.readings.LatestReading(ctx, roomID)
	if err != nil {
		return nil, err
	}

	device, err := cs.deviceStatus(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &RoomStatus{RoomID: room.ID, Name: room.Name, Reading: reading, Device: device}, nil
}

func (cs *ClimateService) deviceStatus(ctx context.Context, roomID uint) (models.DeviceStatus, error) {
	if cs.snapshots != nil {
		snap, err := cs.snapshots.GetDeviceStatus(ctx, roomID)
		if err == nil {
			return *snap, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			cs.logger.Warn("Device snapshot unavailable, using store", "room_id", roomID, slog.Any("error", err))
		}
	}

	st, err := cs.store.GetOrCreate(ctx, roomID)
	if err != nil {
		return models.DeviceStatus{}, err
	}
	return st.Model(), nil
}

// SetControlModes changes who drives each actuator. Nil leaves a mode alone.
func (cs *ClimateService) SetControlModes(ctx context.Context, roomID uint, heating, fan *models.ControlMode) (devicestate.DeviceState, error) {
	if heating == nil && fan == nil {
		return devicestate.DeviceState{}, base.NewValidationError("control_mode", "", "heating or fan mode is required")
	}
	if _, err := cs.rooms.GetRoom(ctx, roomID); err != nil {
		return devicestate.DeviceState{}, err
	}

	st, err := cs.store.Update(ctx, roomID, devicestate.Patch{HeatingMode: heating, FanMode: fan})
	if err != nil {
		return devicestate.DeviceState{}, fmt.Errorf("failed to update control modes of room %d: %w", roomID, err)
	}
	cs.logger.Info("Control modes updated", "room_id", roomID,
		"heating_mode", st.HeatingMode, "fan_mode", st.FanMode)
	return st, nil
}

// Control drives one actuator by hand. When mode is set it is applied to that
// actuator before the command goes out.
func (cs *ClimateService) Control(ctx context.Context, roomID uint, act dispatcher.Actuator, on bool, mode *models.ControlMode) error {
	if _, err := cs.rooms.GetRoom(ctx, roomID); err != nil {
		return err
	}

	if mode != nil {
		p := devicestate.Patch{FanMode: mode}
		if act == dispatcher.Valve {
			p = devicestate.Patch{HeatingMode: mode}
		}
		if _, err := cs.store.Update(ctx, roomID, p); err != nil {
			return fmt.Errorf("failed to set %s control mode of room %d: %w", act, roomID, err)
		}
	}

	switch act {
	case dispatcher.Valve:
		return cs.actuators.SetValve(ctx, roomID, on)
	case dispatcher.Fan:
		return cs.actuators.SetFan(ctx, roomID, on)
	default:
		return base.NewValidationError("actuator", string(act), "unknown actuator")
	}
}
