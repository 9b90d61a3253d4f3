package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/conversation-router/internal/domain"
)

// QueueRepository is the queue directory collaborator.
type QueueRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Queue, error)
	// GetDefaultForChannel returns the channel connection's default queue,
	// or pgx.ErrNoRows when the channel has none configured.
	GetDefaultForChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.Queue, error)
}

type queueRepository struct {
	pool *pgxpool.Pool
}

// NewQueueRepository instantiates repository.
func NewQueueRepository(pool *pgxpool.Pool) QueueRepository {
	return &queueRepository{pool: pool}
}

func (r *queueRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Queue, error) {
	const query = `
        SELECT id, tenant_id, name, channel, created_at, updated_at
        FROM queues WHERE id=$1 AND tenant_id=$2`
	return r.fetchSingle(ctx, query, id, tenantID)
}

func (r *queueRepository) GetDefaultForChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.Queue, error) {
	const query = `
        SELECT q.id, q.tenant_id, q.name, q.channel, q.created_at, q.updated_at
        FROM queues q
        JOIN channel_connections c ON c.default_queue_id = q.id
        WHERE c.tenant_id=$1 AND c.channel=$2`
	return r.fetchSingle(ctx, query, tenantID, channel)
}

func (r *queueRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Queue, error) {
	var queue domain.Queue
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&queue.ID,
		&queue.TenantID,
		&queue.Name,
		&queue.Channel,
		&queue.CreatedAt,
		&queue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &queue, nil
}
