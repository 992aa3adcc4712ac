package base

import (
	"fmt"
	"strconv"
	"time"

	"ecoheat/utils"

	"github.com/labstack/echo/v4"
)

// ===================================================================
// PARAMETER EXTRACTION HELPERS
// ===================================================================

// ExtractIDParam extracts and validates ID parameter from URL
func ExtractIDParam(c echo.Context, paramName string) (uint, error) {
	idStr := c.Param(paramName)
	if idStr == "" {
		return 0, BadRequestError("%s parameter is required", paramName)
	}

	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, BadRequestError("Invalid %s parameter: must be a positive integer", paramName)
	}

	return uint(id), nil
}

// ExtractRoomID extracts the room id path parameter
func ExtractRoomID(c echo.Context) (uint, error) {
	return ExtractIDParam(c, "id")
}

// ExtractOptionalTimeParam parses an RFC 3339 query parameter, falling back to
// defaultValue when it is absent.
func ExtractOptionalTimeParam(c echo.Context, paramName string, defaultValue time.Time) (time.Time, error) {
	raw := c.QueryParam(paramName)
	if raw == "" {
		return defaultValue, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, BadRequestError("Invalid %s parameter: must be RFC 3339", paramName)
	}
	return t, nil
}

// ExtractOptionalIntParam extracts a non-negative integer query parameter
func ExtractOptionalIntParam(c echo.Context, paramName string, defaultValue int) (int, error) {
	raw := c.QueryParam(paramName)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, BadRequestError("Invalid %s parameter: must be a non-negative integer", paramName)
	}
	return n, nil
}

// BindJSON binds the request body, reporting failures as 400
func BindJSON(c echo.Context, target interface{}) error {
	if err := c.Bind(target); err != nil {
		return utils.NewBadRequestError("Invalid request body", err)
	}
	return nil
}

// BadRequestError creates a 400 Bad Request error
func BadRequestError(message string, args ...interface{}) error {
	return utils.NewBadRequestError(fmt.Sprintf(message, args...))
}
