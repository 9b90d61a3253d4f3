// Package botstate tracks, per conversation key, whether the bot is
// authorized to respond. Absence of a record means active: a conversation
// nobody escalated belongs to the bot.
package botstate

import (
	"context"
	"time"
)

// Metadata is the typed annotation attached when a state is written.
type Metadata struct {
	Reason string `json:"reason,omitempty"`
	Source string `json:"source,omitempty"`
}

// State is the bot ownership record for one conversation key within a tenant.
type State struct {
	TenantID  string    `json:"tenant_id"`
	Key       string    `json:"key"`
	Active    bool      `json:"active"`
	Reason    string    `json:"reason,omitempty"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the bot ownership flag store. States are tenant scoped: two
// tenants talking to the same phone number hold independent flags.
// Implementations must be safe for concurrent use. Get never fails on an
// unknown key; it returns the default-active state.
type Store interface {
	Get(ctx context.Context, tenantID, key string) (State, error)
	SetActive(ctx context.Context, tenantID, key string, active bool, meta Metadata) error
	Reset(ctx context.Context, tenantID, key string) error
}

func defaultState(tenantID, key string) State {
	return State{TenantID: tenantID, Key: key, Active: true}
}
