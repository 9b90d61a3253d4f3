package dto

import (
	"time"

	"github.com/spec-kit/conversation-router/internal/domain"
)

// InboundMessageRequest is the payload posted by a channel gateway.
type InboundMessageRequest struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Body    string `json:"body"`
}

// InboundMessageResponse reports routing of one inbound message.
type InboundMessageResponse struct {
	Ticket             TicketResponse `json:"ticket"`
	Created            bool           `json:"created"`
	AutomationNotified bool           `json:"automation_notified"`
}

// EscalateRequest asks for a bot-to-human handoff.
type EscalateRequest struct {
	Channel   string  `json:"channel"`
	Address   string  `json:"address"`
	Reason    string  `json:"reason,omitempty"`
	QueueID   *string `json:"queue_id,omitempty"`
	AISummary string  `json:"ai_summary,omitempty"`
}

// EscalateResponse reports the handoff outcome.
type EscalateResponse struct {
	Success   bool    `json:"success"`
	TicketID  string  `json:"ticket_id,omitempty"`
	QueueID   *string `json:"queue_id,omitempty"`
	QueueName string  `json:"queue_name,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// ReactivateRequest restores bot ownership.
type ReactivateRequest struct {
	Channel string `json:"channel"`
	Address string `json:"address"`
}

// BotStateResponse reports the ownership flag for a conversation.
type BotStateResponse struct {
	ConversationKey string     `json:"conversation_key"`
	Active          bool       `json:"active"`
	Reason          string     `json:"reason,omitempty"`
	Source          string     `json:"source,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// SetBotStateRequest overrides the ownership flag.
type SetBotStateRequest struct {
	Channel string `json:"channel"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
	Reason  string `json:"reason,omitempty"`
}

// UpdateTicketRequest patches status/queue/assignment.
type UpdateTicketRequest struct {
	Status          *string `json:"status,omitempty"`
	QueueID         *string `json:"queue_id,omitempty"`
	ClearQueue      bool    `json:"clear_queue,omitempty"`
	AssignedUserID  *string `json:"assigned_user_id,omitempty"`
	ClearAssignment bool    `json:"clear_assignment,omitempty"`
	CloseReasonID   *string `json:"close_reason_id,omitempty"`
}

// RoutingEventResponse is one audit trail entry.
type RoutingEventResponse struct {
	ID        string         `json:"id"`
	TicketID  string         `json:"ticket_id"`
	Kind      string         `json:"kind"`
	OldValue  map[string]any `json:"old_value,omitempty"`
	NewValue  map[string]any `json:"new_value,omitempty"`
	ActorID   *string        `json:"actor_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// FromRoutingEvent maps the audit entry to its response shape.
func FromRoutingEvent(event domain.RoutingEvent) RoutingEventResponse {
	return RoutingEventResponse{
		ID:        event.ID,
		TicketID:  event.TicketID,
		Kind:      string(event.Kind),
		OldValue:  event.OldValue,
		NewValue:  event.NewValue,
		ActorID:   event.ActorID,
		CreatedAt: event.CreatedAt,
	}
}

// TicketResponse is the outward ticket shape.
type TicketResponse struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	ContactID       *string    `json:"contact_id,omitempty"`
	SessionID       *string    `json:"session_id,omitempty"`
	Channel         string     `json:"channel"`
	ConversationKey string     `json:"conversation_key"`
	Status          string     `json:"status"`
	QueueID         *string    `json:"queue_id,omitempty"`
	AssignedUserID  *string    `json:"assigned_user_id,omitempty"`
	CloseReasonID   *string    `json:"close_reason_id,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	ClosedBy        *string    `json:"closed_by,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	LastMessage     string     `json:"last_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FromTicket maps the domain ticket to its response shape.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              ticket.ID,
		TenantID:        ticket.TenantID,
		ContactID:       ticket.ContactID,
		SessionID:       ticket.SessionID,
		Channel:         string(ticket.Channel),
		ConversationKey: ticket.ConversationKey,
		Status:          string(ticket.Status),
		QueueID:         ticket.QueueID,
		AssignedUserID:  ticket.AssignedUserID,
		CloseReasonID:   ticket.CloseReasonID,
		ClosedAt:        ticket.ClosedAt,
		ClosedBy:        ticket.ClosedBy,
		UnreadCount:     ticket.UnreadCount,
		LastMessage:     ticket.LastMessage,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}
