package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// NotificationsHandler serves the caller's in-app notifications.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notifications}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	recipient, err := service.NotificationRecipient(principal.Actor)
	if err != nil {
		return err
	}
	limit, offset := parsePage(c)
	items, err := h.service.List(c.UserContext(), recipient, c.QueryBool("unread"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewNotificationResponses(items)})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	recipient, err := service.NotificationRecipient(principal.Actor)
	if err != nil {
		return err
	}
	if err := h.service.MarkRead(c.UserContext(), recipient, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
