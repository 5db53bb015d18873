package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/service-request-desk/internal/api/http"
	"github.com/spec-kit/service-request-desk/internal/api/http/handlers"
	"github.com/spec-kit/service-request-desk/internal/auth"
	"github.com/spec-kit/service-request-desk/internal/config"
	"github.com/spec-kit/service-request-desk/internal/events"
	"github.com/spec-kit/service-request-desk/internal/hierarchy"
	"github.com/spec-kit/service-request-desk/internal/observability"
	"github.com/spec-kit/service-request-desk/internal/persistence"
	"github.com/spec-kit/service-request-desk/internal/repository"
	"github.com/spec-kit/service-request-desk/internal/repository/memstore"
	"github.com/spec-kit/service-request-desk/internal/service"
	"github.com/spec-kit/service-request-desk/internal/storage"
	"github.com/spec-kit/service-request-desk/internal/worker"
	"github.com/spec-kit/service-request-desk/internal/workhours"
)

const sweepLockKey = "service-request-desk:escalation-sweep"

type repositories struct {
	tickets       repository.TicketRepository
	users         repository.UserRepository
	entities      repository.SupervisorEntityRepository
	leads         repository.LeadRepository
	history       repository.TicketHistoryRepository
	notifications repository.NotificationRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg)
	realClock := clockwork.NewRealClock()

	window, err := workhours.NewWindow(cfg.WorkHours.StartHour, cfg.WorkHours.EndHour, cfg.WorkHours.Location)
	if err != nil {
		logger.Fatal("invalid working hours", zap.Error(err))
	}
	calculator := workhours.NewCalculator(window, cfg.Escalation.SLABudget())
	resolver := hierarchy.NewResolver(repos.users, repos.entities)
	dispatcher := events.NewInMemoryDispatcher()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	var documents service.DocumentStore
	if cfg.Storage.Enabled() {
		store, err := storage.NewDocumentStore(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Fatal("failed to init document storage", zap.Error(err))
		}
		documents = store
	} else {
		logger.Info("STORAGE_ENDPOINT not provided; attachments disabled")
	}

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: repos.notifications,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	notificationService.RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		UserRepo:    repos.users,
		LeadRepo:    repos.leads,
		HistoryRepo: repos.history,
		Resolver:    resolver,
		Calculator:  calculator,
		Documents:   documents,
		Dispatcher:  dispatcher,
		Clock:       realClock,
		Logger:      logger,
	})

	escalationService := service.NewEscalationService(service.EscalationDependencies{
		TicketRepo:  repos.tickets,
		UserRepo:    repos.users,
		HistoryRepo: repos.history,
		Resolver:    resolver,
		Calculator:  calculator,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Clock:       realClock,
		Logger:      logger,
		BatchSize:   cfg.Escalation.BatchSize,
	})

	workerCfg := worker.EscalationWorkerConfig{
		Schedule: cfg.Escalation.Schedule,
		Window:   window,
		Clock:    realClock,
		Logger:   logger,
	}
	if redis != nil {
		workerCfg.Locker = worker.NewRedisLocker(redis, sweepLockKey, cfg.Escalation.LockTTL())
	}
	escalationWorker, err := worker.NewEscalationWorker(escalationService, workerCfg)
	if err != nil {
		logger.Fatal("failed to init escalation worker", zap.Error(err))
	}
	if cfg.Escalation.Enabled {
		escalationWorker.Start()
	} else {
		logger.Info("ESCALATION_ENABLED=false; scheduled sweeps disabled")
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:     repos.users,
		TokenManager: tokens,
		Logger:       logger,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, repos.users)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env != "development",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, escalationWorker.Running),
		Auth:            handlers.NewAuthHandler(authService),
		ServiceRequests: handlers.NewServiceRequestsHandler(ticketService, realClock),
		Notifications:   handlers.NewNotificationsHandler(notificationService),
		Escalations:     handlers.NewEscalationsHandler(escalationWorker),
		AuthMiddleware:  authMiddleware,
		Gatherer:        registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	escalationWorker.Stop(shutdownCtx)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func buildRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		store := memstore.New()
		return repositories{
			tickets:       store.Tickets(),
			users:         store.Users(),
			entities:      store.Entities(),
			leads:         store.Leads(),
			history:       store.History(),
			notifications: store.Notifications(),
		}
	}
	pool := pg.Pool
	return repositories{
		tickets:       repository.NewTicketRepository(pool),
		users:         repository.NewUserRepository(pool),
		entities:      repository.NewSupervisorEntityRepository(pool),
		leads:         repository.NewLeadRepository(pool),
		history:       repository.NewTicketHistoryRepository(pool),
		notifications: repository.NewNotificationRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
