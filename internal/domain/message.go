package domain

import "time"

// MessageSender identifies who authored a conversation message.
type MessageSender string

const (
	SenderContact MessageSender = "contact"
	SenderAgent   MessageSender = "agent"
	SenderBot     MessageSender = "bot"
	SenderSystem  MessageSender = "system"
)

// Message is one conversation message on a ticket. Internal messages are
// never shown to the customer (escalation summaries, system notes).
type Message struct {
	ID        string
	TenantID  string
	TicketID  string
	Sender    MessageSender
	Body      string
	Internal  bool
	CreatedAt time.Time
}
