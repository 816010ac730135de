package handlers

import (
	"errors"
	"net/http"

	"supportdesk/pkg/models"

	"github.com/labstack/echo/v4"
)

// httpError maps the business error taxonomy onto REST status codes.
// Authorization denials and state-machine precondition failures are
// user-visible outcomes, not system errors.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrValidation):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrNotRegistered), errors.Is(err, models.ErrInsufficientRole):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrConversationClosed),
		errors.Is(err, models.ErrNotClaimed),
		errors.Is(err, models.ErrTokenInvalid),
		errors.Is(err, models.ErrTokenAlreadyActivated),
		errors.Is(err, models.ErrNotAllowlisted),
		errors.Is(err, models.ErrAlreadyPending),
		errors.Is(err, models.ErrConcurrentModification):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrStoreUnavailable):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// replyCode translates a business error into the semantic reply code the
// transport renders; rendering and localization live outside the core
func replyCode(err error) string {
	switch {
	case errors.Is(err, models.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, models.ErrInsufficientRole):
		return "unauthorized"
	case errors.Is(err, models.ErrConversationClosed):
		return "conversation_closed"
	case errors.Is(err, models.ErrNotClaimed):
		return "conversation_not_claimed"
	case errors.Is(err, models.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, models.ErrTokenAlreadyActivated):
		return "token_already_activated"
	case errors.Is(err, models.ErrNotAllowlisted):
		return "not_allowlisted"
	case errors.Is(err, models.ErrAlreadyPending):
		return "already_pending"
	case errors.Is(err, models.ErrConcurrentModification):
		return "already_claimed"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrValidation):
		return "invalid_input"
	default:
		return ""
	}
}
