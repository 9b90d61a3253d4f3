package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/conversation-router/internal/api/dto"
	"github.com/spec-kit/conversation-router/internal/auth"
	"github.com/spec-kit/conversation-router/internal/domain"
	"github.com/spec-kit/conversation-router/internal/repository"
	"github.com/spec-kit/conversation-router/internal/service"
	apperrors "github.com/spec-kit/conversation-router/pkg/util/errorutil"
)

// InboundHandler accepts customer events from channel gateways.
type InboundHandler struct {
	inbound     *service.InboundService
	connections repository.ConnectionRepository
}

// NewInboundHandler returns a new handler instance.
func NewInboundHandler(inbound *service.InboundService, connections repository.ConnectionRepository) *InboundHandler {
	return &InboundHandler{inbound: inbound, connections: connections}
}

// HandleMessage routes one inbound customer message. The gateway identifies
// itself with the tenant id and the connection's inbound token.
func (h *InboundHandler) HandleMessage(c *fiber.Ctx) error {
	channel := domain.Channel(c.Params("channel"))
	if !channel.Valid() {
		return apperrors.NewValidationError("unsupported channel", map[string]any{"channel": string(channel)})
	}

	tenantID := strings.TrimSpace(c.Get("X-Tenant-ID"))
	token := strings.TrimSpace(c.Get("X-Inbound-Token"))
	if tenantID == "" || token == "" {
		return apperrors.NewUnauthorized("missing gateway credentials")
	}

	conn, err := h.connections.GetByTenantChannel(c.UserContext(), tenantID, channel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("unknown channel connection")
		}
		return apperrors.MapError(err)
	}
	if !conn.Active {
		return apperrors.NewForbidden("channel connection disabled")
	}
	if err := auth.CompareInboundToken(conn.InboundTokenHash, token); err != nil {
		return apperrors.NewUnauthorized("invalid inbound token")
	}

	var req dto.InboundMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("message body required", nil)
	}

	result, err := h.inbound.HandleInbound(c.UserContext(), conn, service.InboundInput{
		TenantID:   tenantID,
		Channel:    channel,
		RawAddress: req.Address,
		Name:       req.Name,
		Body:       req.Body,
	})
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.InboundMessageResponse{
		Ticket:             dto.FromTicket(result.Ticket),
		Created:            result.Created,
		AutomationNotified: result.AutomationNotified,
	})
}
