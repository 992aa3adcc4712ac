package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"ecoheat/utils"

	"github.com/labstack/echo/v4"
)

// NewHTTPErrorHandler returns the central error handler for the Echo application.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		reqLogger := logger.With("method", c.Request().Method, "path", c.Path())

		var appErr *utils.AppError
		if !errors.As(err, &appErr) {
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				// routing errors (404, 405) raised by echo itself
				c.JSON(httpErr.Code, utils.ErrorResponse(fmt.Sprint(httpErr.Message)))
				return
			}
			reqLogger.Error("Unhandled error occurred",
				"error_type", fmt.Sprintf("%T", err),
				slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("An unexpected internal error occurred."))
			return
		}

		// If there's an underlying original error, log it for debugging purposes.
		if internalErr := appErr.Unwrap(); internalErr != nil {
			level := slog.LevelInfo
			if appErr.Code >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			reqLogger.Log(c.Request().Context(), level, "Error handled",
				"status_code", appErr.Code,
				"error_message", appErr.Message,
				slog.Any("internal_error", internalErr))
		}

		c.JSON(appErr.Code, utils.ErrorResponse(appErr.Message))
	}
}
