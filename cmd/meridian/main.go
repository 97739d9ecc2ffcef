package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dms/meridian/internal/accounting/accounts"
	"github.com/meridian-dms/meridian/internal/accounting/journals"
	"github.com/meridian-dms/meridian/internal/allocations"
	"github.com/meridian-dms/meridian/internal/app"
	"github.com/meridian-dms/meridian/internal/catalog"
	"github.com/meridian-dms/meridian/internal/collections"
	"github.com/meridian-dms/meridian/internal/customers"
	"github.com/meridian-dms/meridian/internal/integration"
	"github.com/meridian-dms/meridian/internal/notify"
	"github.com/meridian-dms/meridian/internal/observability"
	"github.com/meridian-dms/meridian/internal/orders"
	"github.com/meridian-dms/meridian/internal/platform/cache"
	"github.com/meridian-dms/meridian/internal/platform/db"
	"github.com/meridian-dms/meridian/internal/shared"
	"github.com/meridian-dms/meridian/internal/users"
	"github.com/meridian-dms/meridian/jobs"
)

// viewRefresher adapts the maintenance job for inline post-delivery use.
type viewRefresher struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func (v viewRefresher) RefreshViews(ctx context.Context) error {
	return jobs.RefreshReceivablesSummary(ctx, v.pool, v.logger)
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewNotifier(jobClient, logger)

	catalogCache := catalog.NewCache(redisClient, cfg.AvailabilityCacheTTL)
	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, catalogCache, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	customersRepo := customers.NewRepository(dbpool)
	customersService := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)

	allocationsRepo := allocations.NewRepository(dbpool)
	allocationsService := allocations.NewService(allocationsRepo)
	allocationsHandler := allocations.NewHandler(logger, allocationsService)

	journalsRepo := journals.NewRepository(dbpool)
	journalsService := journals.NewService(journalsRepo, auditLogger)
	journalsHandler := journals.NewHandler(logger, journalsService)

	accountsRepo := accounts.NewRepository(dbpool)
	accountsService := accounts.NewService(accountsRepo)

	hooks := integration.NewHooks(journalsService, accountsService)

	collectionsRepo := collections.NewRepository(dbpool)
	collectionsService := collections.NewService(collectionsRepo, hooks)
	collectionsHandler := collections.NewHandler(logger, collectionsService)

	metrics := observability.NewMetrics()

	ordersRepo, err := orders.NewRepository(ctx, dbpool)
	if err != nil {
		logger.Error("init orders repository", slog.Any("error", err))
		os.Exit(1)
	}
	ordersService := orders.NewService(orders.ServiceParams{
		Repo:        ordersRepo,
		Catalog:     catalogService,
		Allocations: allocationsService,
		Collections: collectionsService,
		Customers:   customersService,
		Users:       usersService,
		Idempotency: idempotencyStore,
		Notifier:    notifier,
		Hooks:       hooks,
		Refresher:   viewRefresher{pool: dbpool, logger: logger},
		Audit:       auditLogger,
		Metrics:     metrics,
		Logger:      logger,
	})
	ordersHandler := orders.NewHandler(logger, ordersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		CatalogHandler:     catalogHandler,
		CustomersHandler:   customersHandler,
		OrdersHandler:      ordersHandler,
		AllocationsHandler: allocationsHandler,
		CollectionsHandler: collectionsHandler,
		JournalsHandler:    journalsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
