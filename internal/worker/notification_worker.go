package worker

import (
	"github.com/spec-kit/issue-ticket-service/internal/events"
	"github.com/spec-kit/issue-ticket-service/internal/service"
)

// StartNotificationWorker registers the event subscribers: the agent session
// fan-out and, when configured, the Kafka export.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, sink *events.KafkaSink) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if sink != nil && dispatcher != nil {
		dispatcher.SubscribeAll(sink.Handle)
	}
}
