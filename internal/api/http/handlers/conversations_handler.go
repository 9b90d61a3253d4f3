package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/conversation-router/internal/api/dto"
	"github.com/spec-kit/conversation-router/internal/auth"
	"github.com/spec-kit/conversation-router/internal/botstate"
	"github.com/spec-kit/conversation-router/internal/domain"
	"github.com/spec-kit/conversation-router/internal/service"
	apperrors "github.com/spec-kit/conversation-router/pkg/util/errorutil"
)

// ConversationsHandler exposes escalate/reactivate and bot-state operations
// to operator and automation callers.
type ConversationsHandler struct {
	escalation *service.EscalationService
	bot        botstate.Store
}

// NewConversationsHandler returns a new handler instance.
func NewConversationsHandler(escalation *service.EscalationService, bot botstate.Store) *ConversationsHandler {
	return &ConversationsHandler{escalation: escalation, bot: bot}
}

// Escalate hands the conversation to a human queue.
func (h *ConversationsHandler) Escalate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	channel, key, err := resolveConversation(req.Channel, req.Address)
	if err != nil {
		return err
	}

	actorID := principal.AgentID
	result, err := h.escalation.Escalate(c.UserContext(), service.EscalateInput{
		TenantID:        principal.TenantID,
		Channel:         channel,
		ConversationKey: key,
		Reason:          req.Reason,
		QueueID:         req.QueueID,
		AISummary:       req.AISummary,
		ActorID:         &actorID,
	})
	if err != nil {
		if apperrors.IsCode(err, "NO_ACTIVE_CONVERSATION") {
			return c.Status(fiber.StatusConflict).JSON(dto.EscalateResponse{
				Success: false,
				Reason:  result.FailureReason,
			})
		}
		return err
	}

	return c.JSON(dto.EscalateResponse{
		Success:   true,
		TicketID:  result.TicketID,
		QueueID:   result.QueueID,
		QueueName: result.QueueName,
	})
}

// Reactivate restores bot ownership for the conversation.
func (h *ConversationsHandler) Reactivate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.ReactivateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	channel, key, err := resolveConversation(req.Channel, req.Address)
	if err != nil {
		return err
	}

	if err := h.escalation.Reactivate(c.UserContext(), principal.TenantID, channel, key); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "conversation_key": key})
}

// GetBotState reads the ownership flag for a conversation.
func (h *ConversationsHandler) GetBotState(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	channel, key, err := resolveConversation(c.Query("channel"), c.Query("address"))
	if err != nil {
		return err
	}
	_ = channel

	state, err := h.bot.Get(c.UserContext(), principal.TenantID, key)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(botStateResponse(state))
}

// SetBotState overrides the ownership flag directly.
func (h *ConversationsHandler) SetBotState(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.SetBotStateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	channel, key, err := resolveConversation(req.Channel, req.Address)
	if err != nil {
		return err
	}
	_ = channel

	meta := botstate.Metadata{Reason: req.Reason, Source: "operator:" + principal.AgentID}
	if err := h.bot.SetActive(c.UserContext(), principal.TenantID, key, req.Active, meta); err != nil {
		return apperrors.MapError(err)
	}

	state, err := h.bot.Get(c.UserContext(), principal.TenantID, key)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(botStateResponse(state))
}

func resolveConversation(rawChannel, rawAddress string) (domain.Channel, string, error) {
	channel := domain.Channel(strings.TrimSpace(rawChannel))
	if !channel.Valid() {
		return "", "", apperrors.NewValidationError("unsupported channel", map[string]any{"channel": rawChannel})
	}
	key, err := domain.ResolveConversationKey(channel, rawAddress)
	if err != nil {
		return "", "", err
	}
	return channel, key, nil
}

func botStateResponse(state botstate.State) dto.BotStateResponse {
	resp := dto.BotStateResponse{
		ConversationKey: state.Key,
		Active:          state.Active,
		Reason:          state.Reason,
		Source:          state.Source,
	}
	if !state.UpdatedAt.IsZero() {
		updatedAt := state.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp
}
