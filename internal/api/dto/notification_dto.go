package dto

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// NotificationResponse describes an in-app notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	TicketID  string                  `json:"ticket_id,omitempty"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewNotificationResponses maps notifications.
func NewNotificationResponses(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			TicketID:  n.TicketID,
			Type:      n.Type,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
