package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/conversation-router/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error)
	// FindActive returns the single ticket in an active status for the
	// (tenant, channel, key) tuple, or pgx.ErrNoRows when none exists.
	FindActive(ctx context.Context, tenantID string, channel domain.Channel, conversationKey string) (*domain.Ticket, error)
	ListByStatus(ctx context.Context, tenantID string, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, tenant_id, contact_id, session_id, channel, conversation_key, status,
               queue_id, assigned_user_id, close_reason_id, closed_at, closed_by,
               unread_count, last_message, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (tenant_id, contact_id, session_id, channel, conversation_key, status,
                             queue_id, assigned_user_id, unread_count, last_message)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TenantID,
		ticket.ContactID,
		ticket.SessionID,
		ticket.Channel,
		ticket.ConversationKey,
		ticket.Status,
		ticket.QueueID,
		ticket.AssignedUserID,
		ticket.UnreadCount,
		ticket.LastMessage,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, queue_id=$2, assigned_user_id=$3, close_reason_id=$4,
            closed_at=$5, closed_by=$6, unread_count=$7, last_message=$8, updated_at=NOW()
        WHERE id=$9 AND tenant_id=$10`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.QueueID,
		ticket.AssignedUserID,
		ticket.CloseReasonID,
		ticket.ClosedAt,
		ticket.ClosedBy,
		ticket.UnreadCount,
		ticket.LastMessage,
		ticket.ID,
		ticket.TenantID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 AND tenant_id=$2`, ticketColumns)
	return r.fetchSingle(ctx, query, id, tenantID)
}

func (r *ticketRepository) FindActive(ctx context.Context, tenantID string, channel domain.Channel, conversationKey string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE tenant_id=$1 AND channel=$2 AND conversation_key=$3
          AND status IN ('bot','pending','open')
        ORDER BY created_at DESC
        LIMIT 1`, ticketColumns)
	return r.fetchSingle(ctx, query, tenantID, channel, conversationKey)
}

func (r *ticketRepository) ListByStatus(ctx context.Context, tenantID string, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	args := []any{tenantID}
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE tenant_id=$1 AND status IN (%s)
        ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(placeholders, ","), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.ContactID,
		&ticket.SessionID,
		&ticket.Channel,
		&ticket.ConversationKey,
		&ticket.Status,
		&ticket.QueueID,
		&ticket.AssignedUserID,
		&ticket.CloseReasonID,
		&ticket.ClosedAt,
		&ticket.ClosedBy,
		&ticket.UnreadCount,
		&ticket.LastMessage,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TenantID,
			&ticket.ContactID,
			&ticket.SessionID,
			&ticket.Channel,
			&ticket.ConversationKey,
			&ticket.Status,
			&ticket.QueueID,
			&ticket.AssignedUserID,
			&ticket.CloseReasonID,
			&ticket.ClosedAt,
			&ticket.ClosedBy,
			&ticket.UnreadCount,
			&ticket.LastMessage,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
