package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"vn.io.arda/marketplace-notification/internal/domain"
)

// toHTTPError maps domain sentinel errors to HTTP statuses.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrTemplateInactive):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		return echo.ErrInternalServerError
	}
}
