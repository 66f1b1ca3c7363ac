package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/servimatch/servimatch/internal/domain"
)

// JSON writes a domain error with the status code a client UI can react to.
// State-conflict errors map to 409 so they are distinguishable from generic
// failures and from plain validation problems.
func JSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrRequestNotFound),
		errors.Is(err, domain.ErrOfferNotFound),
		errors.Is(err, domain.ErrAssignmentNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})

	case errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrNotAssignedTechnician),
		errors.Is(err, domain.ErrNotChannelMember):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})

	case errors.Is(err, domain.ErrRequestClosed),
		errors.Is(err, domain.ErrDuplicateOffer),
		errors.Is(err, domain.ErrAlreadyAssigned),
		errors.Is(err, domain.ErrOfferNotLive),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrChannelClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})

	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
