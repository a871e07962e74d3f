// Package notifier holds the delivery channels behind the notification
// dispatcher.
package notifier

import (
	"context"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

// InAppChannel stores notifications for later reading through the API.
type InAppChannel struct {
	store repository.Store
}

// NewInAppChannel builds the channel.
func NewInAppChannel(store repository.Store) *InAppChannel {
	return &InAppChannel{store: store}
}

// Name implements service.NotificationChannel.
func (c *InAppChannel) Name() string { return "in_app" }

// Deliver implements service.NotificationChannel.
func (c *InAppChannel) Deliver(ctx context.Context, notification domain.Notification) error {
	return c.store.Reader().Notifications.Create(ctx, &notification)
}
