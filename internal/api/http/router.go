package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/conversation-router/internal/api/http/handlers"
	"github.com/spec-kit/conversation-router/internal/auth"
	"github.com/spec-kit/conversation-router/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Inbound        *handlers.InboundHandler
	Conversations  *handlers.ConversationsHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.Middleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))

	api := app.Group("/api")

	// channel gateways authenticate per connection, not per operator
	api.Post("/inbound/:channel", cfg.Inbound.HandleMessage)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/conversations/escalate", cfg.Conversations.Escalate)
	protected.Post("/conversations/reactivate", cfg.Conversations.Reactivate)
	protected.Get("/conversations/bot-state", cfg.Conversations.GetBotState)
	protected.Put("/conversations/bot-state", cfg.Conversations.SetBotState)
	protected.Get("/tickets", cfg.Tickets.List)
	protected.Get("/tickets/:id/history", cfg.Tickets.History)
	protected.Patch("/tickets/:id", cfg.Tickets.UpdateStatus)
}
