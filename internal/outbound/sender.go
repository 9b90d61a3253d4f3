// Package outbound adapts customer-facing message delivery. The engine only
// depends on the Sender interface; delivery failures are non-fatal to routing.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/conversation-router/internal/config"
	"github.com/spec-kit/conversation-router/internal/domain"
)

// DeliveryResult reports the outcome of one send.
type DeliveryResult struct {
	Delivered bool
	Detail    string
}

// Sender delivers a message to the customer on the ticket's channel.
type Sender interface {
	Send(ctx context.Context, ticket *domain.Ticket, body string) (DeliveryResult, error)
}

// GatewaySender posts sends to the channel gateway (WhatsApp client,
// webchat push, SIP bridge) over HTTP.
type GatewaySender struct {
	cfg    config.OutboundConfig
	client *http.Client
	logger *zap.Logger
}

// NewGatewaySender builds the sender.
func NewGatewaySender(cfg config.OutboundConfig, logger *zap.Logger) *GatewaySender {
	return &GatewaySender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

type gatewayRequest struct {
	TenantID        string         `json:"tenant_id"`
	TicketID        string         `json:"ticket_id"`
	Channel         domain.Channel `json:"channel"`
	ConversationKey string         `json:"conversation_key"`
	Body            string         `json:"body"`
}

// Send posts the message to the gateway with a bounded timeout.
func (s *GatewaySender) Send(ctx context.Context, ticket *domain.Ticket, body string) (DeliveryResult, error) {
	if s.cfg.GatewayURL == "" {
		s.logger.Debug("no outbound gateway configured; dropping send",
			zap.String("ticket_id", ticket.ID))
		return DeliveryResult{Delivered: false, Detail: "gateway not configured"}, nil
	}

	payload, err := json.Marshal(gatewayRequest{
		TenantID:        ticket.TenantID,
		TicketID:        ticket.ID,
		Channel:         ticket.Channel,
		ConversationKey: ticket.ConversationKey,
		Body:            body,
	})
	if err != nil {
		return DeliveryResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return DeliveryResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return DeliveryResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return DeliveryResult{Delivered: false, Detail: resp.Status},
			fmt.Errorf("gateway returned %s", resp.Status)
	}
	return DeliveryResult{Delivered: true}, nil
}
