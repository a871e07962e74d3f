package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/dispatch-service/internal/api/http"
	"github.com/spec-kit/dispatch-service/internal/api/http/handlers"
	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/notifier"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/service"
	"github.com/spec-kit/dispatch-service/internal/sla"
	"github.com/spec-kit/dispatch-service/internal/worker"
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

	shutdownTracing := observability.SetupTracing(ctx, cfg.App.Name, cfg.App.Version, cfg.Telemetry, logger)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.Pool != nil {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	policy, err := sla.NewPolicy(cfg.Dispatch.SLAWindows())
	if err != nil {
		logger.Fatal("invalid sla policy", zap.Error(err))
	}

	store := persistence.OpenStore(pg, cfg.Postgres)
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	workOrderService := service.NewWorkOrderService(service.WorkOrderDependencies{
		Store:       store,
		Dispatcher:  dispatcher,
		Policy:      policy,
		MaxTeamSize: cfg.Dispatch.MaxTeamSize,
		Logger:      logger,
		Metrics:     metrics,
	})
	directoryService := service.NewDirectoryService(store, logger)

	channels := []service.NotificationChannel{notifier.NewInAppChannel(store)}
	if redis.Client != nil {
		channels = append(channels, notifier.NewRedisChannel(redis.Client, cfg.Notification.RedisChannel))
	}
	if cfg.Notification.SMTPHost != "" {
		channels = append(channels, notifier.NewEmailChannel(cfg.Notification, store))
	}
	notificationService := service.NewNotificationService(dispatcher, store, logger, channels...)
	worker.StartNotificationWorker(notificationService)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, store)

	retry := handlers.RetryPolicy{
		MaxTries:        uint(cfg.App.BusyRetryMaxTries),
		InitialInterval: cfg.App.BusyRetryInitial(),
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService, retry),
		WorkOrders:     handlers.NewWorkOrdersHandler(workOrderService, retry),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Staff:          handlers.NewStaffHandler(directoryService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
