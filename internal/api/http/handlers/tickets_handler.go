package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/conversation-router/internal/api/dto"
	"github.com/spec-kit/conversation-router/internal/auth"
	"github.com/spec-kit/conversation-router/internal/domain"
	"github.com/spec-kit/conversation-router/internal/service"
	apperrors "github.com/spec-kit/conversation-router/pkg/util/errorutil"
)

// TicketsHandler exposes ticket status transitions to operators.
type TicketsHandler struct {
	routing *service.RoutingService
}

// NewTicketsHandler returns a new handler instance.
func NewTicketsHandler(routing *service.RoutingService) *TicketsHandler {
	return &TicketsHandler{routing: routing}
}

// List returns the tenant's tickets filtered by status. The status query
// parameter takes a comma-separated list; the default is the human queue
// (pending and open).
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var statuses []domain.TicketStatus
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			statuses = append(statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}

	tickets, err := h.routing.ListTickets(c.UserContext(), principal.TenantID, statuses, c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return err
	}

	result := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		result = append(result, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"tickets": result})
}

// History returns the routing audit trail for a ticket.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	ticketID := c.Params("id")
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}

	entries, err := h.routing.TicketHistory(c.UserContext(), principal.TenantID, ticketID, c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return err
	}

	result := make([]dto.RoutingEventResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, dto.FromRoutingEvent(entry))
	}
	return c.JSON(fiber.Map{"events": result})
}

// UpdateStatus applies a status/queue/assignment patch. Closing a ticket
// hands the conversation back to the bot as a side effect.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	ticketID := c.Params("id")
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	actorID := principal.AgentID
	patch := service.TicketPatch{
		QueueID:         req.QueueID,
		ClearQueue:      req.ClearQueue,
		AssignedUserID:  req.AssignedUserID,
		ClearAssignment: req.ClearAssignment,
		CloseReasonID:   req.CloseReasonID,
		ActorID:         &actorID,
	}
	if req.Status != nil {
		status := domain.TicketStatus(*req.Status)
		patch.Status = &status
	}

	ticket, err := h.routing.UpdateStatus(c.UserContext(), principal.TenantID, ticketID, patch)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}
