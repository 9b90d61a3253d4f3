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
	"github.com/spec-kit/conversation-router/internal/outbound"
	"github.com/spec-kit/conversation-router/internal/repository"
	apperrors "github.com/spec-kit/conversation-router/pkg/util/errorutil"
)

const (
	summaryMessageLimit = 5
	summaryLineRunes    = 120
	summaryTotalRunes   = 1000
)

// EscalationService orchestrates the bot-to-human handoff and its reverse.
// Best-effort steps (transfer notice, summary write) are fault isolated: the
// queue reassignment is the business-critical transition and the only one
// whose failure fails the escalation.
type EscalationService struct {
	routing  *RoutingService
	tickets  repository.TicketRepository
	messages repository.MessageRepository
	queues   repository.QueueRepository
	audit    repository.RoutingEventRepository
	bot      botstate.Store
	sender   outbound.Sender
	dispatch events.Dispatcher
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	Routing     *RoutingService
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	QueueRepo   repository.QueueRepository
	AuditRepo   repository.RoutingEventRepository
	BotState    botstate.Store
	Sender      outbound.Sender
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// EscalateInput describes one escalation request.
type EscalateInput struct {
	TenantID        string
	Channel         domain.Channel
	ConversationKey string
	Reason          string
	QueueID         *string
	// AISummary, when supplied, is written verbatim as the internal handoff
	// summary; otherwise a digest of recent messages is synthesized.
	AISummary string
	ActorID   *string
}

// EscalationResult reports the outcome to the caller.
type EscalationResult struct {
	Success       bool
	TicketID      string
	QueueID       *string
	QueueName     string
	FailureReason string
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	return &EscalationService{
		routing:  deps.Routing,
		tickets:  deps.TicketRepo,
		messages: deps.MessageRepo,
		queues:   deps.QueueRepo,
		audit:    deps.AuditRepo,
		bot:      deps.BotState,
		sender:   deps.Sender,
		dispatch: deps.Dispatcher,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Escalate hands the conversation from the bot to a human queue. Step order:
// deactivate bot, locate the active ticket, resolve the target queue, notify
// the customer, reassign the ticket, write the handoff summary, publish the
// UI event. Steps 4 and 6 are best effort.
func (s *EscalationService) Escalate(ctx context.Context, input EscalateInput) (EscalationResult, error) {
	unlock := s.routing.LockConversation(input.TenantID, input.Channel, input.ConversationKey)
	defer unlock()

	if err := s.bot.SetActive(ctx, input.TenantID, input.ConversationKey, false, botstate.Metadata{
		Reason: input.Reason,
		Source: "escalation",
	}); err != nil {
		s.logger.Warn("bot deactivate failed",
			zap.String("tenant_id", input.TenantID),
			zap.String("conversation_key", input.ConversationKey),
			zap.Error(err))
	}

	ticket, err := s.tickets.FindActive(ctx, input.TenantID, input.Channel, input.ConversationKey)
	if err != nil {
		s.countEscalation("no_active_conversation")
		if errors.Is(err, pgx.ErrNoRows) {
			return EscalationResult{Success: false, FailureReason: "no active conversation"},
				apperrors.NewNoActiveConversation(input.ConversationKey)
		}
		return EscalationResult{Success: false, FailureReason: "lookup failed"}, apperrors.MapError(err)
	}

	queue := s.resolveQueue(ctx, input)

	queueName := ""
	var queueID *string
	if queue != nil {
		queueName = queue.Name
		queueID = &queue.ID
	}

	s.sendTransferNotice(ctx, ticket, queueName)

	pending := domain.TicketStatusPending
	patch := TicketPatch{
		Status:          &pending,
		ClearAssignment: true,
		ActorID:         input.ActorID,
	}
	if queueID != nil {
		patch.QueueID = queueID
	}
	updated, err := s.routing.updateStatusLocked(ctx, input.TenantID, ticket.ID, patch)
	if err != nil {
		s.countEscalation("reassign_failed")
		return EscalationResult{Success: false, TicketID: ticket.ID, FailureReason: "reassign failed"}, err
	}

	s.writeHandoffSummary(ctx, updated, input)
	s.recordEscalation(ctx, updated, input, queueID)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventConversationEscalated,
		TenantID: input.TenantID,
		TicketID: updated.ID,
		Payload: events.ConversationEscalatedPayload{
			ConversationKey: input.ConversationKey,
			QueueID:         queueID,
			QueueName:       queueName,
			Reason:          input.Reason,
		},
	})

	s.countEscalation("success")
	return EscalationResult{
		Success:   true,
		TicketID:  updated.ID,
		QueueID:   queueID,
		QueueName: queueName,
	}, nil
}

// Reactivate restores bot ownership for the conversation. Idempotent, and
// requires no ticket: with nothing open, the bot simply owns the next round.
func (s *EscalationService) Reactivate(ctx context.Context, tenantID string, channel domain.Channel, conversationKey string) error {
	if err := s.bot.SetActive(ctx, tenantID, conversationKey, true, botstate.Metadata{
		Source: "reactivation",
	}); err != nil {
		return apperrors.MapError(err)
	}
	if s.metrics != nil {
		s.metrics.Reactivations.Inc()
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventConversationReactivate,
		TenantID: tenantID,
		Payload: events.ConversationReactivatedPayload{
			ConversationKey: conversationKey,
		},
	})
	return nil
}

// resolveQueue prefers the explicit target, then the channel's configured
// default, then none.
func (s *EscalationService) resolveQueue(ctx context.Context, input EscalateInput) *domain.Queue {
	if input.QueueID != nil {
		queue, err := s.queues.GetByID(ctx, input.TenantID, *input.QueueID)
		if err == nil {
			return queue
		}
		s.logger.Warn("requested queue not found; falling back to channel default",
			zap.String("queue_id", *input.QueueID),
			zap.Error(err))
	}
	queue, err := s.queues.GetDefaultForChannel(ctx, input.TenantID, input.Channel)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("default queue lookup failed", zap.Error(err))
		}
		return nil
	}
	return queue
}

func (s *EscalationService) sendTransferNotice(ctx context.Context, ticket *domain.Ticket, queueName string) {
	if s.sender == nil {
		return
	}
	notice := "You are being transferred to one of our agents. Please hold on."
	if queueName != "" {
		notice = fmt.Sprintf("You are being transferred to our %s team. Please hold on.", queueName)
	}
	result, err := s.sender.Send(ctx, ticket, notice)
	if err != nil || !result.Delivered {
		s.countOutbound("failure")
		s.logger.Warn("transfer notice delivery failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("detail", result.Detail),
			zap.Error(apperrors.NewDownstreamDelivery("transfer_notice", err)))
		return
	}
	s.countOutbound("success")
}

// writeHandoffSummary persists the internal-only summary message. Failure is
// logged, never fatal: the state transition already committed.
func (s *EscalationService) writeHandoffSummary(ctx context.Context, ticket *domain.Ticket, input EscalateInput) {
	if s.messages == nil {
		return
	}
	body := strings.TrimSpace(input.AISummary)
	if body == "" {
		recent, err := s.messages.ListRecent(ctx, ticket.TenantID, ticket.ID, summaryMessageLimit)
		if err != nil {
			s.logger.Warn("summary digest source unavailable",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			return
		}
		body = buildSummaryDigest(recent)
	}
	if body == "" {
		return
	}
	msg := &domain.Message{
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Sender:   domain.SenderSystem,
		Body:     "Conversation summary:\n" + body,
		Internal: true,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Warn("handoff summary write failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(apperrors.NewDownstreamDelivery("handoff_summary", err)))
	}
}

// buildSummaryDigest produces a deterministic, bounded digest of the most
// recent messages, oldest first, each line tagged with the sender role.
func buildSummaryDigest(recent []domain.Message) string {
	if len(recent) == 0 {
		return ""
	}
	lines := make([]string, 0, len(recent))
	// ListRecent returns newest first; the digest reads top to bottom
	for i := len(recent) - 1; i >= 0; i-- {
		msg := recent[i]
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Sender, stringPreview(msg.Body, summaryLineRunes)))
	}
	digest := strings.Join(lines, "\n")
	return stringPreview(digest, summaryTotalRunes)
}

func (s *EscalationService) recordEscalation(ctx context.Context, ticket *domain.Ticket, input EscalateInput, queueID *string) {
	if s.audit == nil {
		return
	}
	entry := &domain.RoutingEvent{
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Kind:     domain.RoutingEventEscalation,
		NewValue: map[string]any{"queue_id": queueID, "reason": input.Reason},
		ActorID:  input.ActorID,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("escalation audit write failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}

func (s *EscalationService) countEscalation(result string) {
	if s.metrics != nil {
		s.metrics.Escalations.WithLabelValues(result).Inc()
	}
}

func (s *EscalationService) countOutbound(result string) {
	if s.metrics != nil {
		s.metrics.OutboundSends.WithLabelValues(result).Inc()
	}
}

func (s *EscalationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatch == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatch.Publish(ctx, event)
}
