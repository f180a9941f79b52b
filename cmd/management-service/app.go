package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq" // PostgreSQL driver

	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/internal/management"
	"pulse/internal/rules"
	"pulse/pkg/bootstrap"
	"pulse/pkg/health"
	"pulse/pkg/metrics"
	"pulse/pkg/middleware"
	"pulse/pkg/ratelimit"
	"pulse/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	base           *bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	rdb            *redis.Client
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.base.InitBus(a.rdb); err != nil {
		return fmt.Errorf("failed to initialize bus: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: a.router,
	}

	tp, err := tracing.Init(a.config.Tracing, "management-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Database.RunMigrations {
		if err := bootstrap.RunMigrations(a.db, a.config.Database.MigrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.logger.InfowCtx(ctx, "Migrations applied")
	}

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.rdb = rdb
	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("management-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.TraceIDMiddleware())

	if a.config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.DefaultConfig()
		if a.config.RateLimit.RPS > 0 {
			rateLimitConfig.RPS = a.config.RateLimit.RPS
		}
		if a.config.RateLimit.Burst > 0 {
			rateLimitConfig.Burst = a.config.RateLimit.Burst
		}
		router.Use(ratelimit.Middleware(rateLimitConfig))
		a.logger.InfowCtx(context.Background(), "Rate limiting enabled",
			"rps", rateLimitConfig.RPS,
			"burst", rateLimitConfig.Burst,
		)
	}

	repo := rules.NewRepository(a.db)
	audit := management.NewAuditLogger(a.db)

	svc := management.NewService(repo, a.base.DLQStore, a.base.Bus, audit,
		a.config.DLQ.ReplayConcurrency, a.logger)

	handler := management.NewHandler(svc, a.logger)
	handler.RegisterRoutes(router)

	metrics.RegisterBusMetrics()
	metrics.RegisterManagementMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewRedisChecker(a.rdb))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	errs = append(errs, a.base.ShutdownBus()...)
	errs = append(errs, a.dbConnector.ShutdownDatabases(a.rdb, a.db)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
