package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/conversation-router/internal/domain"
)

// RoutingEventRepository persists the ticket transition audit trail.
type RoutingEventRepository interface {
	Create(ctx context.Context, event *domain.RoutingEvent) error
	ListByTicket(ctx context.Context, tenantID, ticketID string, limit, offset int) ([]domain.RoutingEvent, error)
}

type routingEventRepository struct {
	pool *pgxpool.Pool
}

// NewRoutingEventRepository instantiates repository.
func NewRoutingEventRepository(pool *pgxpool.Pool) RoutingEventRepository {
	return &routingEventRepository{pool: pool}
}

func (r *routingEventRepository) Create(ctx context.Context, event *domain.RoutingEvent) error {
	const query = `
        INSERT INTO routing_events (tenant_id, ticket_id, kind, old_value, new_value, actor_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		event.TenantID,
		event.TicketID,
		event.Kind,
		event.OldValue,
		event.NewValue,
		event.ActorID,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *routingEventRepository) ListByTicket(ctx context.Context, tenantID, ticketID string, limit, offset int) ([]domain.RoutingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, tenant_id, ticket_id, kind, old_value, new_value, actor_id, created_at
        FROM routing_events
        WHERE tenant_id=$1 AND ticket_id=$2
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, tenantID, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RoutingEvent
	for rows.Next() {
		var event domain.RoutingEvent
		if err := rows.Scan(
			&event.ID,
			&event.TenantID,
			&event.TicketID,
			&event.Kind,
			&event.OldValue,
			&event.NewValue,
			&event.ActorID,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
