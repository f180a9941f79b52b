package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"pulse/internal/actions"
	"pulse/internal/bus"
	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/internal/provider"
	"pulse/internal/resilience"
	"pulse/internal/rules"
	"pulse/pkg/bootstrap"
	"pulse/pkg/health"
	"pulse/pkg/metrics"
	"pulse/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	base           *bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	rdb            *redis.Client
	engine         *rules.Engine
	server         *http.Server
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

	if err := a.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	a.initOpsServer()

	tp, err := tracing.Init(a.config.Tracing, "engine-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterBusMetrics()
	metrics.RegisterEngineMetrics()
	metrics.RegisterResilienceMetrics()

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

func (a *App) initEngine() error {
	repo := rules.NewRepository(a.db)

	notifier := actions.NewNotifier(a.config.Notifications, a.logger)
	taskStore := actions.NewPostgresTaskStore(a.db)

	var completer actions.Completer
	if a.config.Providers.Primary.URL != "" {
		completer = a.newProviderRouter()
	}
	executor := actions.NewExecutor(taskStore, notifier, completer, a.logger)

	engine, err := rules.NewEngine(repo, executor, a.logger)
	if err != nil {
		return err
	}
	a.engine = engine

	a.base.Bus.Subscribe(bus.WildcardType, engine.HandleEvent)
	return nil
}

// initOpsServer exposes liveness and metrics only; the management service
// owns the real API surface.
func (a *App) initOpsServer() {
	registry := health.NewCheckerRegistry()
	registry.Register(health.NewPostgreSQLChecker(a.db))
	registry.Register(health.NewRedisChecker(a.rdb))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := registry.Check(r.Context())
		status := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"status":%q}`, h.Status)
	})

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: mux,
	}
}

func (a *App) newProviderRouter() *provider.Router {
	breaker := resilience.NewCircuitBreaker(
		a.config.Providers.Primary.Name,
		a.config.CircuitBreaker.Threshold,
		a.config.CircuitBreaker.ResetTimeout,
	)

	var limiter *resilience.RateLimiter
	if a.config.RateLimit.MaxRequests > 0 {
		limiter = resilience.NewRateLimiter(
			a.config.RateLimit.MaxRequests,
			time.Duration(a.config.RateLimit.WindowSecs)*time.Second,
		)
	}

	primary := provider.NewHTTPClient(a.config.Providers.Primary)
	var fallback provider.Client
	if a.config.Providers.Fallback.URL != "" {
		fallback = provider.NewHTTPClient(a.config.Providers.Fallback)
	}

	return provider.NewRouter(primary, fallback, breaker, limiter, a.config.Providers.Retries, a.logger)
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(gctx, "Ops server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := a.base.Bus.Consume(gctx,
			a.config.Bus.Group,
			a.config.Bus.Consumer,
			a.config.Bus.ReadCount,
			a.config.Bus.BlockTimeout,
		)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	g.Go(func() error {
		interval := time.Duration(a.config.Engine.ReloadIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = constants.DefaultRulesReloadSeconds * time.Second
		}
		if err := a.engine.StartGaugeReporter(gctx, interval); err == context.Canceled {
			return nil
		} else if err != nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down engine service")

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

	a.logger.InfowCtx(ctx, "Engine service exited successfully")
	return nil
}
