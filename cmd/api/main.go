package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/conversation-router/internal/api/http"
	"github.com/spec-kit/conversation-router/internal/api/http/handlers"
	"github.com/spec-kit/conversation-router/internal/auth"
	"github.com/spec-kit/conversation-router/internal/botstate"
	"github.com/spec-kit/conversation-router/internal/config"
	"github.com/spec-kit/conversation-router/internal/events"
	"github.com/spec-kit/conversation-router/internal/observability"
	"github.com/spec-kit/conversation-router/internal/outbound"
	"github.com/spec-kit/conversation-router/internal/persistence"
	"github.com/spec-kit/conversation-router/internal/repository"
	"github.com/spec-kit/conversation-router/internal/service"
	"github.com/spec-kit/conversation-router/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	contactRepo := repository.NewContactRepository(pool)
	queueRepo := repository.NewQueueRepository(pool)
	connectionRepo := repository.NewConnectionRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	auditRepo := repository.NewRoutingEventRepository(pool)

	var botStore botstate.Store
	if cfg.BotState.Backend == "redis" {
		botStore = botstate.NewRedisStore(redis.Client)
		logger.Info("using redis bot state store")
	} else {
		botStore = botstate.NewMemoryStore()
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifier := events.NewRedisNotifier(redis.Client, logger)
	worker.StartEventForwarder(dispatcher, notifier, logger)

	sender := outbound.NewGatewaySender(cfg.Outbound, logger)

	routingService := service.NewRoutingService(service.RoutingDependencies{
		TicketRepo: ticketRepo,
		BotState:   botStore,
		AuditRepo:  auditRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		Routing:     routingService,
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		QueueRepo:   queueRepo,
		AuditRepo:   auditRepo,
		BotState:    botStore,
		Sender:      sender,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	routingService.SetReactivator(escalationService)

	automationService := service.NewAutomationService(cfg.Automation, botStore, queueRepo, metrics, logger)
	inboundService := service.NewInboundService(service.InboundDependencies{
		Routing:     routingService,
		Automation:  automationService,
		ContactRepo: contactRepo,
		MessageRepo: messageRepo,
		Metrics:     metrics,
		Logger:      logger,
	})

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Inbound:        handlers.NewInboundHandler(inboundService, connectionRepo),
		Conversations:  handlers.NewConversationsHandler(escalationService, botStore),
		Tickets:        handlers.NewTicketsHandler(routingService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
