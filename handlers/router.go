package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health  *HealthHandler
	Rooms   *RoomHandler
	Engine  *EngineHandler
	Metrics http.Handler
}

// NewRouter builds the Echo application with the API under /api/v1 and the
// Prometheus endpoint at /metrics.
func NewRouter(h Handlers, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(requestLogger(logger.With("component", "http")))

	api := e.Group("/api/v1")
	api.GET("/health", h.Health.HealthCheck)

	rooms := api.Group("/rooms/:id")
	rooms.GET("/status", h.Rooms.GetStatus)
	rooms.GET("/history", h.Rooms.GetHistory)
	rooms.POST("/valve", h.Rooms.ControlValve)
	rooms.POST("/fan", h.Rooms.ControlFan)
	rooms.PUT("/control-mode", h.Rooms.SetControlMode)

	api.GET("/engine", h.Engine.GetStatus)
	api.POST("/engine", h.Engine.PostAction)

	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}
	return e
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String()}
			if v.Error != nil {
				logger.Warn("Request failed", append(attrs, slog.Any("error", v.Error))...)
				return nil
			}
			logger.Debug("Request served", attrs...)
			return nil
		},
	})
}
