package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pwaforge/manifestd/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	slog.Warn("bad request", "error", err)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.Warn("bad request", "reason", msg)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	slog.Error("internal error", "error", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// FromError maps domain errors to their HTTP representation.
func FromError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrFetch):
		return BadRequest(c, err)
	case errors.Is(err, domain.ErrValidationEngine),
		errors.Is(err, domain.ErrNormalization),
		errors.Is(err, domain.ErrProjectBuild),
		errors.Is(err, domain.ErrPackage),
		errors.Is(err, domain.ErrProbe):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		return InternalError(c, err)
	}
}
