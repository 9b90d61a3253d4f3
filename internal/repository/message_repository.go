package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/conversation-router/internal/domain"
)

// MessageRepository encapsulates message persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListRecent returns up to limit customer-visible messages for the
	// ticket, newest first. Internal messages are excluded.
	ListRecent(ctx context.Context, tenantID, ticketID string, limit int) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (tenant_id, ticket_id, sender, body, internal)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TenantID,
		msg.TicketID,
		msg.Sender,
		msg.Body,
		msg.Internal,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) ListRecent(ctx context.Context, tenantID, ticketID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `
        SELECT id, tenant_id, ticket_id, sender, body, internal, created_at
        FROM messages
        WHERE tenant_id=$1 AND ticket_id=$2 AND internal=FALSE
        ORDER BY created_at DESC
        LIMIT $3`
	rows, err := r.pool.Query(ctx, query, tenantID, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TenantID,
			&msg.TicketID,
			&msg.Sender,
			&msg.Body,
			&msg.Internal,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
