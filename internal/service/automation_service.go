package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/conversation-router/internal/botstate"
	"github.com/spec-kit/conversation-router/internal/config"
	"github.com/spec-kit/conversation-router/internal/domain"
	"github.com/spec-kit/conversation-router/internal/observability"
	"github.com/spec-kit/conversation-router/internal/repository"
)

// AutomationService is the webhook dispatcher: it forwards bot-owned inbound
// events to the tenant's external automation endpoint. At most once, fire
// and forget; the upstream automation is expected to be idempotent on its
// own trigger log.
type AutomationService struct {
	bot     botstate.Store
	queues  repository.QueueRepository
	client  *http.Client
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAutomationService constructs the dispatcher.
func NewAutomationService(cfg config.AutomationConfig, bot botstate.Store, queues repository.QueueRepository, metrics *observability.Metrics, logger *zap.Logger) *AutomationService {
	return &AutomationService{
		bot:     bot,
		queues:  queues,
		client:  &http.Client{Timeout: cfg.Timeout()},
		timeout: cfg.Timeout(),
		metrics: metrics,
		logger:  logger,
	}
}

// AutomationPayload is the enriched snapshot sent to the endpoint. Resolved
// at call time; later ticket mutations do not retroactively change it.
type AutomationPayload struct {
	TenantID        string              `json:"tenant_id"`
	Channel         domain.Channel      `json:"channel"`
	ConversationKey string              `json:"conversation_key"`
	TicketID        string              `json:"ticket_id"`
	TicketStatus    domain.TicketStatus `json:"ticket_status"`
	QueueID         *string             `json:"queue_id,omitempty"`
	QueueName       string              `json:"queue_name,omitempty"`
	AssignedUserID  *string             `json:"assigned_user_id,omitempty"`
	ContactID       string              `json:"contact_id,omitempty"`
	ContactName     string              `json:"contact_name,omitempty"`
	ContactAddress  string              `json:"contact_address,omitempty"`
	MessageBody     string              `json:"message_body"`
	ReceivedAt      time.Time           `json:"received_at"`
}

// Notify delivers the event when both gates pass: the connection has an
// automation endpoint and the bot still owns the conversation. Returns
// whether a delivery succeeded; it never raises into the caller and never
// mutates ticket or bot state.
func (s *AutomationService) Notify(ctx context.Context, conn *domain.ChannelConnection, ticket *domain.Ticket, contact *domain.Contact, messageBody string) bool {
	if !conn.HasAutomation() {
		return false
	}

	state, err := s.bot.Get(ctx, ticket.TenantID, ticket.ConversationKey)
	if err != nil {
		s.logger.Warn("bot state read failed during notify",
			zap.String("tenant_id", ticket.TenantID),
			zap.String("conversation_key", ticket.ConversationKey),
			zap.Error(err))
	}
	if !state.Active {
		return false
	}

	payload := AutomationPayload{
		TenantID:        ticket.TenantID,
		Channel:         ticket.Channel,
		ConversationKey: ticket.ConversationKey,
		TicketID:        ticket.ID,
		TicketStatus:    ticket.Status,
		QueueID:         ticket.QueueID,
		AssignedUserID:  ticket.AssignedUserID,
		MessageBody:     messageBody,
		ReceivedAt:      time.Now(),
	}
	if contact != nil {
		payload.ContactID = contact.ID
		payload.ContactName = contact.Name
		payload.ContactAddress = contact.Address
	}
	if ticket.QueueID != nil && s.queues != nil {
		if queue, err := s.queues.GetByID(ctx, ticket.TenantID, *ticket.QueueID); err == nil {
			payload.QueueName = queue.Name
		}
	}

	if s.deliver(ctx, conn.AutomationURL, payload) {
		s.countDelivery("success")
		return true
	}
	s.countDelivery("failure")
	return false
}

func (s *AutomationService) deliver(ctx context.Context, url string, payload AutomationPayload) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("automation payload marshal failed", zap.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		s.logger.Warn("automation request build failed", zap.String("url", url), zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("automation delivery failed",
			zap.String("url", url),
			zap.String("ticket_id", payload.TicketID),
			zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("automation endpoint rejected delivery",
			zap.String("url", url),
			zap.String("ticket_id", payload.TicketID),
			zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}

func (s *AutomationService) countDelivery(result string) {
	if s.metrics != nil {
		s.metrics.WebhookDeliveries.WithLabelValues(result).Inc()
	}
}
