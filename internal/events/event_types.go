package events

import (
	"time"

	"github.com/spec-kit/conversation-router/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketUpdated          EventType = "ticket_updated"
	EventTicketClosed           EventType = "ticket_closed"
	EventConversationEscalated  EventType = "conversation_escalated"
	EventConversationReactivate EventType = "conversation_reactivated"
)

// Event represents a domain event emitted by the routing engine. Every event
// is tenant scoped; the notifier fans it out on the tenant's channel.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Channel         domain.Channel      `json:"channel"`
	ConversationKey string              `json:"conversation_key"`
	Status          domain.TicketStatus `json:"status"`
	QueueID         *string             `json:"queue_id,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	OldStatus      domain.TicketStatus `json:"old_status"`
	NewStatus      domain.TicketStatus `json:"new_status"`
	QueueID        *string             `json:"queue_id,omitempty"`
	AssignedUserID *string             `json:"assigned_user_id,omitempty"`
	UnreadCount    int                 `json:"unread_count"`
	LastMessage    string              `json:"last_message,omitempty"`
}

// ConversationEscalatedPayload payload.
type ConversationEscalatedPayload struct {
	ConversationKey string  `json:"conversation_key"`
	QueueID         *string `json:"queue_id,omitempty"`
	QueueName       string  `json:"queue_name,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

// ConversationReactivatedPayload payload.
type ConversationReactivatedPayload struct {
	ConversationKey string `json:"conversation_key"`
}
