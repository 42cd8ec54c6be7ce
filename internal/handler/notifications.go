package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/homeservepro/marketplace/internal/model"
	"github.com/homeservepro/marketplace/internal/repository"
)

// NotificationHandler serves the in-app notification inbox.
type NotificationHandler struct {
	Notifications *repository.NotificationRepo
}

func NewNotificationHandler(n *repository.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{Notifications: n}
}

type notificationView struct {
	ID        string            `json:"id"`
	Category  string            `json:"category"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Payload   map[string]string `json:"payload,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}

func toNotificationView(n *model.Notification) notificationView {
	return notificationView{
		ID:        n.ID,
		Category:  string(n.Category),
		Title:     n.Title,
		Message:   n.Message,
		Payload:   n.Payload,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// List returns the authenticated user's notifications, newest first.
// ?unread=true narrows to unread ones.
func (h *NotificationHandler) List(c echo.Context) error {
	userID, _ := currentUser(c)
	offset, limit := pageParams(c)
	unreadOnly := c.QueryParam("unread") == "true"

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ns, err := h.Notifications.ListByUser(ctx, userID, unreadOnly, offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]notificationView, 0, len(ns))
	for i := range ns {
		out = append(out, toNotificationView(&ns[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": out})
}

// MarkRead marks one of the user's notifications as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID, _ := currentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Notifications.MarkRead(ctx, c.Param("id"), userID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
