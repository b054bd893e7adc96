package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/safevault/internal/api/http"
	"github.com/spec-kit/safevault/internal/api/http/handlers"
	"github.com/spec-kit/safevault/internal/auth"
	"github.com/spec-kit/safevault/internal/config"
	"github.com/spec-kit/safevault/internal/events"
	"github.com/spec-kit/safevault/internal/observability"
	"github.com/spec-kit/safevault/internal/persistence"
	"github.com/spec-kit/safevault/internal/repository"
	"github.com/spec-kit/safevault/internal/service"
	"github.com/spec-kit/safevault/internal/validation"
	"github.com/spec-kit/safevault/internal/worker"
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

	gate, err := validation.NewGate(cfg.Gate.ExtraPatterns...)
	if err != nil {
		logger.Fatal("failed to compile input gate", zap.Error(err))
	}

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
	dispatcher := events.NewInMemoryDispatcher()
	userRepo := repository.NewUserRepository(pg.PoolHandle())
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	throttle := service.NewLoginThrottle(redis.Client, cfg.Auth, logger)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:   userRepo,
		Gate:       gate,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Throttle:   throttle,
		Logger:     logger,
	})
	userService := service.NewUserService(userRepo, dispatcher, logger)
	auditService := service.NewAuditService(dispatcher, logger)
	worker.StartAuditWorker(auditService)

	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	authHandler := handlers.NewAuthHandler(authService, tokens)
	adminHandler := handlers.NewAdminHandler(userService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Auth:           authHandler,
		Admin:          adminHandler,
		AuthMiddleware: authMiddleware,
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
