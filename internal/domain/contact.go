package domain

import "time"

// Contact is a channel-addressable customer within one tenant. Address is
// stored already normalized (same rules as the identity resolver).
type Contact struct {
	ID        string
	TenantID  string
	Channel   Channel
	Address   string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Queue is a human-agent work queue.
type Queue struct {
	ID        string
	TenantID  string
	Name      string
	Channel   Channel
	CreatedAt time.Time
	UpdatedAt time.Time
}
