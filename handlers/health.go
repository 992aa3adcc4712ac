package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ecoheat/utils"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the reachability of the service's dependencies.
type HealthHandler struct {
	db     Pinger
	cache  Pinger
	mqtt   ConnectionChecker
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. cache may be nil.
func NewHealthHandler(db, cache Pinger, mqtt ConnectionChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, mqtt: mqtt, logger: logger.With("component", "health")}
}

// HealthCheck answers 503 only when the database is down; a missing broker or
// cache degrades the service without stopping it.
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	components := map[string]string{
		"database": h.check(ctx, "database", h.db),
		"redis":    h.check(ctx, "redis", h.cache),
		"mqtt":     "up",
	}
	if !h.mqtt.IsConnected() {
		components["mqtt"] = "down"
	}

	data := map[string]interface{}{
		"service":    "ecoheat",
		"timestamp":  time.Now().Unix(),
		"components": components,
	}
	if components["database"] != "up" {
		return c.JSON(http.StatusServiceUnavailable, utils.StandardResponse{
			Status: "error", Message: "Database is unreachable", Data: data,
		})
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Service is healthy", data))
}

func (h *HealthHandler) check(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", "component_name", name, slog.Any("error", err))
		return "down"
	}
	return "up"
}
