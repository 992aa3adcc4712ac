package handlers

import (
	"context"
	"time"

	"ecoheat/engine"
	"ecoheat/handlers/base"

	"github.com/labstack/echo/v4"
)

type EngineController interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Settings() engine.Settings
	UpdateSettings(s engine.Settings) error
}

type ConnectionChecker interface {
	IsConnected() bool
}

type SubscriptionLister interface {
	Subscribed() []uint
}

// EngineHandler exposes the decision loop to operators.
type EngineHandler struct {
	// ctx outlives requests; the loop started from a request runs on it.
	ctx    context.Context
	engine EngineController
	mqtt   ConnectionChecker
	subs   SubscriptionLister
}

func NewEngineHandler(ctx context.Context, e EngineController, mqtt ConnectionChecker, subs SubscriptionLister) *EngineHandler {
	return &EngineHandler{ctx: ctx, engine: e, mqtt: mqtt, subs: subs}
}

type engineStatus struct {
	Running              bool    `json:"running"`
	CheckInterval        int     `json:"check_interval"`
	TemperatureThreshold float64 `json:"temperature_threshold"`
	MQTTConnected        bool    `json:"mqtt_connected"`
	SubscribedRooms      []uint  `json:"subscribed_rooms"`
}

type engineRequest struct {
	Action               string   `json:"action"`
	CheckInterval        *int     `json:"check_interval"`
	TemperatureThreshold *float64 `json:"temperature_threshold"`
}

func (h *EngineHandler) status() engineStatus {
	s := h.engine.Settings()
	subscribed := h.subs.Subscribed()
	if subscribed == nil {
		subscribed = []uint{}
	}
	return engineStatus{
		Running:              h.engine.Running(),
		CheckInterval:        int(s.CheckInterval / time.Second),
		TemperatureThreshold: s.TemperatureThreshold,
		MQTTConnected:        h.mqtt.IsConnected(),
		SubscribedRooms:      subscribed,
	}
}

func (h *EngineHandler) GetStatus(c echo.Context) error {
	return base.SendOKJSON(c, "Decision engine status retrieved successfully", h.status())
}

// PostAction handles start, stop and update_settings.
func (h *EngineHandler) PostAction(c echo.Context) error {
	var req engineRequest
	if err := base.BindJSON(c, &req); err != nil {
		return err
	}

	var message string
	switch req.Action {
	case "start":
		if err := h.engine.Start(h.ctx); err != nil {
			return base.HandleServiceError(err)
		}
		message = "Decision engine started"
	case "stop":
		h.engine.Stop()
		message = "Decision engine stopped"
	case "update_settings":
		s := h.engine.Settings()
		if req.CheckInterval != nil {
			s.CheckInterval = time.Duration(*req.CheckInterval) * time.Second
		}
		if req.TemperatureThreshold != nil {
			s.TemperatureThreshold = *req.TemperatureThreshold
		}
		if err := h.engine.UpdateSettings(s); err != nil {
			return base.HandleServiceError(err)
		}
		message = "Decision engine settings updated"
	default:
		return base.BadRequestError("Invalid action %q: expected start, stop or update_settings", req.Action)
	}
	return base.SendOKJSON(c, message, h.status())
}
