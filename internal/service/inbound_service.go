package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/conversation-router/internal/domain"
	"github.com/spec-kit/conversation-router/internal/observability"
	"github.com/spec-kit/conversation-router/internal/repository"
	apperrors "github.com/spec-kit/conversation-router/pkg/util/errorutil"
)

// InboundService is the entry point for customer events: it resolves the
// conversation identity, finds or creates the ticket, records the message
// and forwards bot-owned conversations to the automation endpoint.
type InboundService struct {
	routing    *RoutingService
	automation *AutomationService
	contacts   repository.ContactRepository
	messages   repository.MessageRepository
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// InboundDependencies bundles collaborators.
type InboundDependencies struct {
	Routing     *RoutingService
	Automation  *AutomationService
	ContactRepo repository.ContactRepository
	MessageRepo repository.MessageRepository
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// InboundInput describes one inbound customer message.
type InboundInput struct {
	TenantID   string
	Channel    domain.Channel
	RawAddress string
	Name       string
	Body       string
}

// InboundResult reports what the engine did with the event.
type InboundResult struct {
	Ticket             *domain.Ticket
	Created            bool
	AutomationNotified bool
}

// NewInboundService constructs the service.
func NewInboundService(deps InboundDependencies) *InboundService {
	return &InboundService{
		routing:    deps.Routing,
		automation: deps.Automation,
		contacts:   deps.ContactRepo,
		messages:   deps.MessageRepo,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// HandleInbound routes one customer message through the engine.
func (s *InboundService) HandleInbound(ctx context.Context, conn *domain.ChannelConnection, input InboundInput) (*InboundResult, error) {
	key, err := domain.ResolveConversationKey(input.Channel, input.RawAddress)
	if err != nil {
		return nil, err
	}

	contact, err := s.upsertContact(ctx, input, key)
	if err != nil {
		return nil, err
	}

	ref := ContactRef{}
	if contact != nil {
		ref.ContactID = &contact.ID
	}
	if input.Channel == domain.ChannelWebchat {
		session := key
		ref.SessionID = &session
	}

	ticket, created, err := s.routing.FindOrCreateTicket(ctx, input.TenantID, input.Channel, key, ref, stringPreview(input.Body, 120))
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		TenantID: input.TenantID,
		TicketID: ticket.ID,
		Sender:   domain.SenderContact,
		Body:     input.Body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.metrics != nil {
		s.metrics.InboundEvents.WithLabelValues(string(input.Channel)).Inc()
	}

	notified := s.automation.Notify(ctx, conn, ticket, contact, input.Body)

	s.logger.Debug("inbound message routed",
		zap.String("tenant_id", input.TenantID),
		zap.String("channel", string(input.Channel)),
		zap.String("ticket_id", ticket.ID),
		zap.String("status", string(ticket.Status)),
		zap.Bool("created", created),
		zap.Bool("automation_notified", notified))

	return &InboundResult{Ticket: ticket, Created: created, AutomationNotified: notified}, nil
}

func (s *InboundService) upsertContact(ctx context.Context, input InboundInput, key string) (*domain.Contact, error) {
	contact, err := s.contacts.FindByAddress(ctx, input.TenantID, input.Channel, key)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	contact = &domain.Contact{
		TenantID: input.TenantID,
		Channel:  input.Channel,
		Address:  key,
		Name:     input.Name,
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, apperrors.MapError(err)
	}
	return contact, nil
}
