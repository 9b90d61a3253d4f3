package domain

import "time"

// RoutingEventKind enumerates audit record kinds.
type RoutingEventKind string

const (
	RoutingEventStatus     RoutingEventKind = "status"
	RoutingEventQueue      RoutingEventKind = "queue"
	RoutingEventAssignment RoutingEventKind = "assignment"
	RoutingEventEscalation RoutingEventKind = "escalation"
)

// RoutingEvent is the audit trail entry for a ticket transition. Writes are
// best effort; a failed audit write never fails the transition it records.
type RoutingEvent struct {
	ID        string
	TenantID  string
	TicketID  string
	Kind      RoutingEventKind
	OldValue  map[string]any
	NewValue  map[string]any
	ActorID   *string
	CreatedAt time.Time
}
