package domain

import "time"

// Channel enumerates supported conversation channels.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelWebchat   Channel = "webchat"
	ChannelTelephony Channel = "telephony"
)

// Valid reports whether the channel is one of the supported values.
func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelWebchat, ChannelTelephony:
		return true
	}
	return false
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	// TicketStatusBot marks a conversation owned by the bot; it is
	// suppressed from human-visible queues.
	TicketStatusBot TicketStatus = "bot"
	// TicketStatusPending marks a conversation waiting in a human queue.
	TicketStatusPending TicketStatus = "pending"
	// TicketStatusOpen marks a conversation being worked by an agent.
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// ActiveStatuses are the states that count against the single-active-ticket
// invariant: at most one ticket in any of these per (tenant, channel, key).
var ActiveStatuses = []TicketStatus{TicketStatusBot, TicketStatusPending, TicketStatusOpen}

// IsActive reports whether the status counts as an open unit of work.
func (s TicketStatus) IsActive() bool {
	return s == TicketStatusBot || s == TicketStatusPending || s == TicketStatusOpen
}

// Valid reports whether the status is a known value.
func (s TicketStatus) Valid() bool {
	return s.IsActive() || s == TicketStatusClosed
}

// Ticket is the unit of work representing one ongoing conversation round.
// Closed tickets are never reopened by the engine; a new inbound event after
// close always creates a fresh ticket.
type Ticket struct {
	ID              string
	TenantID        string
	ContactID       *string
	SessionID       *string
	Channel         Channel
	ConversationKey string
	Status          TicketStatus
	QueueID         *string
	AssignedUserID  *string
	CloseReasonID   *string
	ClosedAt        *time.Time
	ClosedBy        *string
	UnreadCount     int
	LastMessage     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
