package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/conversation-router/internal/botstate"
	"github.com/spec-kit/conversation-router/internal/domain"
	"github.com/spec-kit/conversation-router/internal/events"
	"github.com/spec-kit/conversation-router/internal/observability"
	"github.com/spec-kit/conversation-router/internal/repository"
	apperrors "github.com/spec-kit/conversation-router/pkg/util/errorutil"
)

// Reactivator restores bot ownership for a conversation. Implemented by the
// escalation service; the routing service invokes it when a ticket closes.
type Reactivator interface {
	Reactivate(ctx context.Context, tenantID string, channel domain.Channel, conversationKey string) error
}

// RoutingService owns ticket creation, reuse and status transitions. It is
// the only component allowed to mutate ticket status.
type RoutingService struct {
	tickets     repository.TicketRepository
	bot         botstate.Store
	audit       repository.RoutingEventRepository
	dispatcher  events.Dispatcher
	reactivator Reactivator
	metrics     *observability.Metrics
	logger      *zap.Logger
	locks       *keyLock
}

// RoutingDependencies bundles collaborators for the routing service.
type RoutingDependencies struct {
	TicketRepo repository.TicketRepository
	BotState   botstate.Store
	AuditRepo  repository.RoutingEventRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// ContactRef links a new ticket to its addressable entity.
type ContactRef struct {
	ContactID *string
	SessionID *string
}

// TicketPatch describes an updateStatus change set. Nil fields are untouched.
type TicketPatch struct {
	Status          *domain.TicketStatus
	QueueID         *string
	ClearQueue      bool
	AssignedUserID  *string
	ClearAssignment bool
	CloseReasonID   *string
	ActorID         *string
}

// NewRoutingService constructs the service.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	return &RoutingService{
		tickets:    deps.TicketRepo,
		bot:        deps.BotState,
		audit:      deps.AuditRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		locks:      newKeyLock(),
	}
}

// SetReactivator wires the close-triggered reactivation hook. Called once
// during startup; the routing and escalation services reference each other.
func (s *RoutingService) SetReactivator(r Reactivator) {
	s.reactivator = r
}

// LockConversation acquires the per-conversation exclusive section shared
// with find-or-create. Coordinators hold it across their multi-step
// sequences. Returns the release func.
func (s *RoutingService) LockConversation(tenantID string, channel domain.Channel, conversationKey string) func() {
	return s.locks.Lock(conversationLockKey(tenantID, channel, conversationKey))
}

// FindOrCreateTicket returns the active ticket for the conversation,
// creating one when none exists. The whole read-then-write sequence runs
// under the per-key lock so concurrent inbound events for the same
// conversation cannot create duplicate active tickets.
func (s *RoutingService) FindOrCreateTicket(ctx context.Context, tenantID string, channel domain.Channel, conversationKey string, ref ContactRef, messagePreview string) (*domain.Ticket, bool, error) {
	unlock := s.LockConversation(tenantID, channel, conversationKey)
	defer unlock()

	ticket, err := s.tickets.FindActive(ctx, tenantID, channel, conversationKey)
	if err == nil {
		ticket.UnreadCount++
		ticket.LastMessage = messagePreview
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, false, apperrors.MapError(err)
		}
		s.publishTicketUpdate(ctx, ticket, ticket.Status)
		return ticket, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperrors.MapError(err)
	}

	state, err := s.bot.Get(ctx, tenantID, conversationKey)
	if err != nil {
		// default-active on store trouble; losing an override degrades to
		// bot-owned, never to silent human assignment
		s.logger.Warn("bot state read failed; assuming active",
			zap.String("tenant_id", tenantID),
			zap.String("conversation_key", conversationKey),
			zap.Error(err))
		state = botstate.State{TenantID: tenantID, Key: conversationKey, Active: true}
	}

	status := domain.TicketStatusBot
	if !state.Active {
		status = domain.TicketStatusPending
	}

	ticket = &domain.Ticket{
		TenantID:        tenantID,
		ContactID:       ref.ContactID,
		SessionID:       ref.SessionID,
		Channel:         channel,
		ConversationKey: conversationKey,
		Status:          status,
		UnreadCount:     1,
		LastMessage:     messagePreview,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, false, apperrors.MapError(err)
	}

	if s.metrics != nil {
		s.metrics.TicketsCreated.WithLabelValues(string(status)).Inc()
	}
	// bot-owned tickets stay invisible to the human queue UI
	if status != domain.TicketStatusBot {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketCreated,
			TenantID: tenantID,
			TicketID: ticket.ID,
			Payload: events.TicketCreatedPayload{
				Channel:         channel,
				ConversationKey: conversationKey,
				Status:          status,
				QueueID:         ticket.QueueID,
			},
		})
	}
	return ticket, true, nil
}

// UpdateStatus applies a status/queue/assignment patch to a ticket within
// the caller's tenant. A transition into closed stamps the close metadata
// and hands the conversation back to the bot; a transition out of closed
// clears it. The patch runs under the per-conversation lock so it cannot
// interleave with find-or-create or a coordinator sequence on the same key.
func (s *RoutingService) UpdateStatus(ctx context.Context, tenantID, ticketID string, patch TicketPatch) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, apperrors.MapError(err)
	}

	unlock := s.LockConversation(tenantID, ticket.Channel, ticket.ConversationKey)
	defer unlock()

	return s.updateStatusLocked(ctx, tenantID, ticketID, patch)
}

// updateStatusLocked is UpdateStatus for callers already holding the
// conversation lock. It re-reads the ticket: the pre-lock snapshot may be
// stale by the time the lock is acquired.
func (s *RoutingService) updateStatusLocked(ctx context.Context, tenantID, ticketID string, patch TicketPatch) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, apperrors.MapError(err)
	}

	oldStatus := ticket.Status
	closing := false

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperrors.NewValidationError("invalid ticket status", map[string]any{"status": string(*patch.Status)})
		}
		switch {
		case *patch.Status == domain.TicketStatusClosed && oldStatus != domain.TicketStatusClosed:
			now := time.Now()
			ticket.ClosedAt = &now
			ticket.ClosedBy = patch.ActorID
			ticket.CloseReasonID = patch.CloseReasonID
			closing = true
		case *patch.Status != domain.TicketStatusClosed && oldStatus == domain.TicketStatusClosed:
			ticket.ClosedAt = nil
			ticket.ClosedBy = nil
			ticket.CloseReasonID = nil
		}
		ticket.Status = *patch.Status
	}

	if patch.ClearQueue {
		ticket.QueueID = nil
	} else if patch.QueueID != nil {
		ticket.QueueID = patch.QueueID
	}
	if patch.ClearAssignment {
		ticket.AssignedUserID = nil
	} else if patch.AssignedUserID != nil {
		ticket.AssignedUserID = patch.AssignedUserID
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, apperrors.MapError(err)
	}

	s.recordTransition(ctx, ticket, oldStatus, patch)
	s.publishTicketUpdate(ctx, ticket, oldStatus)

	if closing && s.reactivator != nil {
		if err := s.reactivator.Reactivate(ctx, tenantID, ticket.Channel, ticket.ConversationKey); err != nil {
			// the close already committed; reactivation trouble is log-only
			s.logger.Error("reactivation after close failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("conversation_key", ticket.ConversationKey),
				zap.Error(err))
		}
	}
	return ticket, nil
}

// ListTickets returns the tenant's tickets in the given statuses, most
// recently updated first. An empty filter means the human-visible queue:
// pending and open.
func (s *RoutingService) ListTickets(ctx context.Context, tenantID string, statuses []domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	if len(statuses) == 0 {
		statuses = []domain.TicketStatus{domain.TicketStatusPending, domain.TicketStatusOpen}
	}
	for _, status := range statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid ticket status", map[string]any{"status": string(status)})
		}
	}
	tickets, err := s.tickets.ListByStatus(ctx, tenantID, statuses, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// TicketHistory returns the routing audit trail for a ticket, newest first.
func (s *RoutingService) TicketHistory(ctx context.Context, tenantID, ticketID string, limit, offset int) ([]domain.RoutingEvent, error) {
	if _, err := s.tickets.GetByID(ctx, tenantID, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, apperrors.MapError(err)
	}
	entries, err := s.audit.ListByTicket(ctx, tenantID, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *RoutingService) recordTransition(ctx context.Context, ticket *domain.Ticket, oldStatus domain.TicketStatus, patch TicketPatch) {
	if s.audit == nil || oldStatus == ticket.Status {
		return
	}
	entry := &domain.RoutingEvent{
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Kind:     domain.RoutingEventStatus,
		OldValue: map[string]any{"status": oldStatus},
		NewValue: map[string]any{"status": ticket.Status, "queue_id": ticket.QueueID},
		ActorID:  patch.ActorID,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("routing audit write failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}

func (s *RoutingService) publishTicketUpdate(ctx context.Context, ticket *domain.Ticket, oldStatus domain.TicketStatus) {
	// no human-visible change while the bot keeps ownership
	if ticket.Status == domain.TicketStatusBot && oldStatus == domain.TicketStatusBot {
		return
	}
	eventType := events.EventTicketUpdated
	if ticket.Status == domain.TicketStatusClosed && oldStatus != domain.TicketStatusClosed {
		eventType = events.EventTicketClosed
	}
	s.publishEvent(ctx, events.Event{
		Type:     eventType,
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Payload: events.TicketUpdatedPayload{
			OldStatus:      oldStatus,
			NewStatus:      ticket.Status,
			QueueID:        ticket.QueueID,
			AssignedUserID: ticket.AssignedUserID,
			UnreadCount:    ticket.UnreadCount,
			LastMessage:    ticket.LastMessage,
		},
	})
}

func (s *RoutingService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func conversationLockKey(tenantID string, channel domain.Channel, conversationKey string) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, channel, conversationKey)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
