package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-ticket-service/internal/api/http"
	"github.com/spec-kit/issue-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/issue-ticket-service/internal/clock"
	"github.com/spec-kit/issue-ticket-service/internal/config"
	"github.com/spec-kit/issue-ticket-service/internal/events"
	"github.com/spec-kit/issue-ticket-service/internal/observability"
	"github.com/spec-kit/issue-ticket-service/internal/persistence"
	"github.com/spec-kit/issue-ticket-service/internal/realtime"
	"github.com/spec-kit/issue-ticket-service/internal/repository"
	"github.com/spec-kit/issue-ticket-service/internal/service"
	"github.com/spec-kit/issue-ticket-service/internal/worker"
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
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, redisUp := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var deadlines worker.DeadlineStore
	if redisUp {
		deadlines = worker.NewRedisDeadlineStore(redis.Client, worker.DefaultDeadlineKey)
	} else {
		logger.Warn("auto-close deadlines kept in memory; they are rebuilt from postgres on restart")
		deadlines = worker.NewMemoryDeadlineStore()
	}

	metrics := observability.NewMetrics()
	hub := realtime.NewHub(cfg.Realtime.SendBuffer, logger.Named("hub"), metrics)
	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))

	var sink *events.KafkaSink
	if cfg.Kafka.Enabled() {
		sink, err = events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger.Named("kafka"))
		if err != nil {
			logger.Fatal("failed to create kafka sink", zap.Error(err))
		}
	}

	pool := pg.Pool
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	productRepo := repository.NewProductRepository(pool)

	systemClock := clock.NewSystem()
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		AgentRepo:   agentRepo,
		Transactor:  repository.NewTransactor(pool),
		Assignment:  service.NewAssignmentPolicy(agentRepo),
		Dispatcher:  dispatcher,
		Scheduler:   worker.NewAutoCloseScheduler(deadlines),
		Clock:       systemClock,
		Window:      cfg.AutoClose.Window(),
		Logger:      logger.Named("tickets"),
	})
	agentService := service.NewAgentService(agentRepo, dispatcher)
	customerService := service.NewCustomerService(customerRepo, dispatcher)
	productService := service.NewProductService(productRepo)

	notificationService := service.NewNotificationService(dispatcher, hub, logger.Named("notifications"))
	worker.StartNotificationWorker(dispatcher, notificationService, sink)

	autoClose := worker.NewAutoCloseWorker(deadlines, ticketService, systemClock, worker.AutoCloseOptions{
		Window:            cfg.AutoClose.Window(),
		SweepInterval:     cfg.AutoClose.SweepInterval(),
		ReconcileInterval: cfg.AutoClose.ReconcileInterval(),
		BatchSize:         cfg.AutoClose.BatchSize,
	}, logger.Named("autoclose"))

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := autoClose.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("auto-close worker stopped", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.CORS.AllowedOrigins)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			handlers.Dependency{Name: "postgres", Pinger: pg},
			handlers.Dependency{Name: "redis", Pinger: redis, Optional: true},
		),
		Metrics:   handlers.NewMetricsHandler(metrics, hub),
		Tickets:   handlers.NewTicketsHandler(ticketService),
		Agents:    handlers.NewAgentsHandler(agentService),
		Customers: handlers.NewCustomersHandler(customerService),
		Products:  handlers.NewProductsHandler(productService),
		Realtime:  handlers.NewRealtimeHandler(hub, agentService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	<-workerDone

	// Agent sessions are long-lived, so the hub is closed before fiber waits for handlers to return.
	hub.Close()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			logger.Warn("kafka sink close", zap.Error(err))
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
