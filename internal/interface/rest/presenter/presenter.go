package presenter

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/certanchor/certanchor/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func Accepted(c echo.Context, payload any) error {
	return c.JSON(http.StatusAccepted, payload)
}

func BadRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// FromError maps a domain error onto the matching HTTP response.
func FromError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidTransition):
		return BadRequest(c, err)
	case errors.Is(err, domain.ErrDuplicateID), errors.Is(err, domain.ErrDuplicateFingerprint):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrIssuerNotAuthorized):
		return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		return InternalError(c, err)
	}
}
