package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-ticket-service/internal/events"
)

// Broadcaster fans an event out to connected agent sessions.
type Broadcaster interface {
	Broadcast(event events.Event)
}

// NotificationService forwards every published event to the agent sessions.
type NotificationService struct {
	dispatcher events.Dispatcher
	hub        Broadcaster
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, hub Broadcaster, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		hub:        hub,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.hub == nil {
		return
	}
	n.dispatcher.SubscribeAll(n.handleEvent)
}

// handleEvent never fails; delivery problems stay inside the hub.
func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	n.logger.Debug("broadcasting event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", event.Subject.Kind),
		zap.Int64("subject_id", event.Subject.ID))
	n.hub.Broadcast(event)
	return nil
}
