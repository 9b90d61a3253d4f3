// Package worker bridges the in-process event dispatcher and the real-time
// notifier so coordinators never depend on the fanout transport directly.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/conversation-router/internal/events"
)

var forwardedTopics = map[events.EventType]string{
	events.EventTicketCreated:          "tickets",
	events.EventTicketUpdated:          "tickets",
	events.EventTicketClosed:           "tickets",
	events.EventConversationEscalated:  "conversations",
	events.EventConversationReactivate: "conversations",
}

// StartEventForwarder subscribes every engine event and forwards it to the
// tenant-scoped notifier. Best effort: a failed publish is logged and the
// event dropped.
func StartEventForwarder(dispatcher events.Dispatcher, notifier events.Notifier, logger *zap.Logger) {
	if dispatcher == nil || notifier == nil {
		return
	}
	for eventType, topic := range forwardedTopics {
		topic := topic
		dispatcher.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			if err := notifier.Publish(ctx, event.TenantID, topic, event); err != nil {
				logger.Warn("event fanout failed",
					zap.String("event_id", event.ID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
			}
			return nil
		})
	}
}
