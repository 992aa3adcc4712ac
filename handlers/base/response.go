package base

import (
	"errors"
	"net/http"

	"ecoheat/dispatcher"
	"ecoheat/engine"
	repobase "ecoheat/repositories/base"
	"ecoheat/services"
	"ecoheat/utils"

	"github.com/labstack/echo/v4"
)

// ===================================================================
// HTTP ERROR HANDLING
// ===================================================================

// HandleServiceError converts service and repository errors to AppErrors
func HandleServiceError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case repobase.IsEntityNotFound(err):
		return utils.NewNotFoundError(err.Error())
	case repobase.IsValidationError(err), errors.Is(err, engine.ErrInvalidSettings):
		return utils.NewBadRequestError(err.Error(), err)
	case errors.Is(err, engine.ErrAlreadyRunning):
		return utils.NewConflictError(err.Error())
	case errors.Is(err, dispatcher.ErrNotConnected):
		return utils.NewServiceUnavailableError("MQTT broker is not connected", err)
	case errors.Is(err, dispatcher.ErrPublishFailed):
		return utils.NewBadGatewayError("MQTT command could not be published", err)
	case errors.Is(err, services.ErrNoOwner):
		return utils.NewInternalServerError("No user can own the room", err)
	default:
		return utils.NewInternalServerError("An unexpected internal error occurred.", err)
	}
}

// ===================================================================
// RESPONSE HELPERS
// ===================================================================

// SendOKJSON sends a 200 OK response
func SendOKJSON(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, utils.SuccessResponse(message, data))
}
