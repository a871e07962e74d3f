package worker

import (
	"github.com/spec-kit/dispatch-service/internal/service"
)

// StartNotificationWorker subscribes the notification dispatcher to every
// engine event so deliveries start once a transaction commits.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
