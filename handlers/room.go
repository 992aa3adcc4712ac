package handlers

import (
	"context"
	"fmt"
	"time"

	"ecoheat/devicestate"
	"ecoheat/dispatcher"
	"ecoheat/handlers/base"
	"ecoheat/models"
	"ecoheat/services"

	"github.com/labstack/echo/v4"
)

const defaultHistoryWindow = 24 * time.Hour

type RoomController interface {
	Status(ctx context.Context, roomID uint) (*services.RoomStatus, error)
	SetControlModes(ctx context.Context, roomID uint, heating, fan *models.ControlMode) (devicestate.DeviceState, error)
	Control(ctx context.Context, roomID uint, act dispatcher.Actuator, on bool, mode *models.ControlMode) error
}

type ReadingHistory interface {
	History(ctx context.Context, roomID uint, start, end time.Time, limit int) ([]models.SensorReading, error)
}

// RoomHandler serves the per-room status and manual control endpoints.
type RoomHandler struct {
	rooms    RoomController
	readings ReadingHistory
	now      func() time.Time
}

func NewRoomHandler(rooms RoomController, readings ReadingHistory) *RoomHandler {
	return &RoomHandler{rooms: rooms, readings: readings, now: time.Now}
}

type controlRequest struct {
	On          *bool   `json:"on"`
	ControlMode *string `json:"control_mode"`
}

type controlModeRequest struct {
	Heating *string `json:"heating"`
	Fan     *string `json:"fan"`
}

// GetStatus returns the latest reading and device state of a room.
func (h *RoomHandler) GetStatus(c echo.Context) error {
	roomID, err := base.ExtractRoomID(c)
	if err != nil {
		return err
	}
	status, err := h.rooms.Status(c.Request().Context(), roomID)
	if err != nil {
		return base.HandleServiceError(err)
	}
	return base.SendOKJSON(c, "Room status retrieved successfully", status)
}

// GetHistory returns readings between start and end, most recent first.
// Without parameters it covers the last 24 hours.
func (h *RoomHandler) GetHistory(c echo.Context) error {
	roomID, err := base.ExtractRoomID(c)
	if err != nil {
		return err
	}
	now := h.now()
	end, err := base.ExtractOptionalTimeParam(c, "end", now)
	if err != nil {
		return err
	}
	start, err := base.ExtractOptionalTimeParam(c, "start", end.Add(-defaultHistoryWindow))
	if err != nil {
		return err
	}
	limit, err := base.ExtractOptionalIntParam(c, "limit", 0)
	if err != nil {
		return err
	}

	readings, err := h.readings.History(c.Request().Context(), roomID, start, end, limit)
	if err != nil {
		return base.HandleServiceError(err)
	}
	data := map[string]interface{}{
		"roomId":   roomID,
		"start":    start,
		"end":      end,
		"readings": readings,
		"count":    len(readings),
	}
	return base.SendOKJSON(c, "Sensor history retrieved successfully", data)
}

func (h *RoomHandler) ControlValve(c echo.Context) error {
	return h.control(c, dispatcher.Valve)
}

func (h *RoomHandler) ControlFan(c echo.Context) error {
	return h.control(c, dispatcher.Fan)
}

func (h *RoomHandler) control(c echo.Context, act dispatcher.Actuator) error {
	roomID, err := base.ExtractRoomID(c)
	if err != nil {
		return err
	}
	var req controlRequest
	if err := base.BindJSON(c, &req); err != nil {
		return err
	}
	if req.On == nil {
		return base.BadRequestError("on is required")
	}
	mode, err := parseOptionalMode("control_mode", req.ControlMode)
	if err != nil {
		return err
	}

	if err := h.rooms.Control(c.Request().Context(), roomID, act, *req.On, mode); err != nil {
		return base.HandleServiceError(err)
	}

	state := "off"
	if *req.On {
		state = "on"
	}
	data := map[string]interface{}{
		"roomId":   roomID,
		"actuator": act,
		"on":       *req.On,
	}
	return base.SendOKJSON(c, fmt.Sprintf("%s %s command applied", act, state), data)
}

// SetControlMode switches heating and fan between manual and schedule control.
func (h *RoomHandler) SetControlMode(c echo.Context) error {
	roomID, err := base.ExtractRoomID(c)
	if err != nil {
		return err
	}
	var req controlModeRequest
	if err := base.BindJSON(c, &req); err != nil {
		return err
	}
	heating, err := parseOptionalMode("heating", req.Heating)
	if err != nil {
		return err
	}
	fan, err := parseOptionalMode("fan", req.Fan)
	if err != nil {
		return err
	}

	st, err := h.rooms.SetControlModes(c.Request().Context(), roomID, heating, fan)
	if err != nil {
		return base.HandleServiceError(err)
	}
	return base.SendOKJSON(c, "Control modes updated successfully", st.Model())
}

func parseOptionalMode(field string, raw *string) (*models.ControlMode, error) {
	if raw == nil {
		return nil, nil
	}
	mode, err := models.ParseControlMode(*raw)
	if err != nil {
		return nil, base.BadRequestError("Invalid %s: %v", field, err)
	}
	return &mode, nil
}
