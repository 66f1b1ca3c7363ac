package notify

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/servimatch/servimatch/internal/httperr"
	"github.com/servimatch/servimatch/internal/middleware"
	"github.com/servimatch/servimatch/internal/store"
)

// Handler exposes the inbox. Records are created by the fan-out; users only
// read, flip the read flag, or purge their own rows.
type Handler struct {
	store   store.Notifications
	service *Service
}

func NewHandler(st store.Notifications, service *Service) *Handler {
	return &Handler{store: st, service: service}
}

// List returns the caller's notifications, newest first.
func (h *Handler) List(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.store.ListByRecipient(c.Request().Context(), actor.UserID)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	count, err := h.store.UnreadCount(c.Request().Context(), actor.UserID)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

func (h *Handler) MarkRead(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notification id"})
	}
	if err := h.store.MarkRead(c.Request().Context(), id, actor.UserID); err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	updated, err := h.store.MarkAllRead(c.Request().Context(), actor.UserID)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": updated})
}

func (h *Handler) Delete(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notification id"})
	}
	if err := h.store.Delete(c.Request().Context(), id, actor.UserID); err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

func (h *Handler) DeleteAll(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	deleted, err := h.store.DeleteAll(c.Request().Context(), actor.UserID)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": deleted})
}

// AdminSend lets an administrator push an arbitrary notification to a user.
func (h *Handler) AdminSend(c echo.Context) error {
	var body struct {
		RecipientID string `json:"recipient_id"`
		Title       string `json:"title"`
		Body        string `json:"body"`
	}
	if err := c.Bind(&body); err != nil || body.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	recipient, err := uuid.Parse(body.RecipientID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid recipient id"})
	}
	n, err := h.service.Notify(c.Request().Context(), recipient, body.Title, body.Body)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notification": n})
}
