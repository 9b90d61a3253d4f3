package domain

import "time"

// ChannelConnection binds a tenant to one inbound channel. It carries the
// automation endpoint the webhook dispatcher targets, the default queue used
// when an escalation names none, and the bcrypt hash of the token the channel
// gateway presents on inbound calls.
type ChannelConnection struct {
	ID               string
	TenantID         string
	Channel          Channel
	AutomationURL    string
	DefaultQueueID   *string
	InboundTokenHash string
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasAutomation reports whether an external automation endpoint is configured.
func (c *ChannelConnection) HasAutomation() bool {
	return c != nil && c.AutomationURL != ""
}
