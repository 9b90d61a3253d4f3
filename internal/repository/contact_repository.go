package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/conversation-router/internal/domain"
)

// ContactRepository encapsulates contact persistence.
type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	// FindByAddress looks up a contact by its normalized address, returning
	// pgx.ErrNoRows when unknown.
	FindByAddress(ctx context.Context, tenantID string, channel domain.Channel, address string) (*domain.Contact, error)
}

type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository instantiates repository.
func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	const query = `
        INSERT INTO contacts (tenant_id, channel, address, name)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (tenant_id, channel, address)
            DO UPDATE SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE contacts.name END,
                          updated_at = NOW()
        RETURNING id, name, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		contact.TenantID,
		contact.Channel,
		contact.Address,
		contact.Name,
	).Scan(&contact.ID, &contact.Name, &contact.CreatedAt, &contact.UpdatedAt)
}

func (r *contactRepository) FindByAddress(ctx context.Context, tenantID string, channel domain.Channel, address string) (*domain.Contact, error) {
	const query = `
        SELECT id, tenant_id, channel, address, name, created_at, updated_at
        FROM contacts WHERE tenant_id=$1 AND channel=$2 AND address=$3`
	return r.fetchSingle(ctx, query, tenantID, channel, address)
}

func (r *contactRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Contact, error) {
	var contact domain.Contact
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&contact.ID,
		&contact.TenantID,
		&contact.Channel,
		&contact.Address,
		&contact.Name,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &contact, nil
}
