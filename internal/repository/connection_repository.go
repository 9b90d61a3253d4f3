package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/conversation-router/internal/domain"
)

// ConnectionRepository encapsulates channel connection persistence.
type ConnectionRepository interface {
	GetByTenantChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.ChannelConnection, error)
}

type connectionRepository struct {
	pool *pgxpool.Pool
}

// NewConnectionRepository instantiates repository.
func NewConnectionRepository(pool *pgxpool.Pool) ConnectionRepository {
	return &connectionRepository{pool: pool}
}

func (r *connectionRepository) GetByTenantChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.ChannelConnection, error) {
	const query = `
        SELECT id, tenant_id, channel, automation_url, default_queue_id, inbound_token_hash,
               active, created_at, updated_at
        FROM channel_connections WHERE tenant_id=$1 AND channel=$2`
	var conn domain.ChannelConnection
	if err := r.pool.QueryRow(ctx, query, tenantID, channel).Scan(
		&conn.ID,
		&conn.TenantID,
		&conn.Channel,
		&conn.AutomationURL,
		&conn.DefaultQueueID,
		&conn.InboundTokenHash,
		&conn.Active,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &conn, nil
}
