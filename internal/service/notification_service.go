package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

// NotificationChannel delivers a notification over one transport.
type NotificationChannel interface {
	Name() string
	Deliver(ctx context.Context, notification domain.Notification) error
}

// NotificationService turns committed events into per-recipient
// notifications and fans them out to every channel. Delivery is best effort.
type NotificationService struct {
	dispatcher events.Dispatcher
	store      repository.Store
	channels   []NotificationChannel
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, store repository.Store, logger *zap.Logger, channels ...NotificationChannel) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		store:      store,
		channels:   channels,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to every event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes() {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Debug("delivering notifications",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Int("recipients", len(event.Recipients)))

	seen := make(map[domain.Recipient]bool, len(event.Recipients))
	for _, recipient := range event.Recipients {
		if seen[recipient] {
			continue
		}
		seen[recipient] = true
		notification := domain.Notification{
			Recipient: recipient,
			TicketID:  event.TicketID,
			Type:      domain.NotificationType(event.Type),
			Message:   event.Message,
			CreatedAt: event.Timestamp,
		}
		for _, channel := range n.channels {
			if err := channel.Deliver(ctx, notification); err != nil {
				n.logger.Warn("notification delivery failed",
					zap.String("channel", channel.Name()),
					zap.String("recipient_type", string(recipient.Type)),
					zap.String("recipient_id", recipient.ID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
			}
		}
	}
	return nil
}

// List returns the recipient's in-app notifications, newest first.
func (n *NotificationService) List(ctx context.Context, recipient domain.Recipient, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	items, err := n.store.Reader().Notifications.ListByRecipient(ctx, recipient, unreadOnly, limit, offset)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return items, nil
}

// MarkRead flips the read flag of one of the recipient's notifications.
func (n *NotificationService) MarkRead(ctx context.Context, recipient domain.Recipient, notificationID string) error {
	if err := n.store.Reader().Notifications.MarkRead(ctx, notificationID, recipient); err != nil {
		return mapStoreError(notFoundAs(err, "notification", "notification_id", notificationID))
	}
	return nil
}

// NotificationRecipient maps an actor to the recipient it reads notifications as.
func NotificationRecipient(actor domain.Actor) (domain.Recipient, error) {
	switch actor.Type {
	case domain.SubjectTypeCompany:
		return domain.CompanyRecipient(actor.ID), nil
	case domain.SubjectTypeStaff:
		return domain.StaffRecipient(actor.ID), nil
	}
	return domain.Recipient{}, apperrors.NewUnauthorized("unknown principal")
}
