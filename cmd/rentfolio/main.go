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

	"github.com/rentfolio/rentfolio/internal/app"
	"github.com/rentfolio/rentfolio/internal/billing"
	"github.com/rentfolio/rentfolio/internal/commission"
	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/ledger"
	"github.com/rentfolio/rentfolio/internal/observability"
	"github.com/rentfolio/rentfolio/internal/payments"
	"github.com/rentfolio/rentfolio/internal/platform/cache"
	"github.com/rentfolio/rentfolio/internal/platform/db"
	"github.com/rentfolio/rentfolio/internal/refdata"
	"github.com/rentfolio/rentfolio/internal/sequence"
	"github.com/rentfolio/rentfolio/internal/shared"
	"github.com/rentfolio/rentfolio/jobs"
)

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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, balance cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	balanceCache := ledger.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)

	leasesRepo := leases.NewRepository(pool)
	refdataRepo := refdata.NewRepository(pool)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, leasesRepo, auditLogger, logger)
	ledgerService.WithCache(balanceCache)

	numbers := sequence.NewGenerator(sequence.NewRepository(pool))
	commissionRepo := commission.NewRepository(pool)
	commissionService := commission.NewService(commissionRepo, leasesRepo, numbers, logger)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, ledgerService, leasesRepo, refdataRepo, logger)
	billingService.WithCascade(commissionService)
	billingService.WithRenderer(jobsClient)
	billingService.WithCache(balanceCache)
	billingService.WithAudit(auditLogger)
	ledgerService.WithAssessor(billingService)

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, ledgerService, leasesRepo, logger)
	paymentsService.WithCache(balanceCache)
	paymentsService.WithRenderer(jobsClient)
	paymentsService.WithAudit(auditLogger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		LedgerHandler:   ledger.NewHandler(logger, ledgerService),
		BillingHandler:  billing.NewHandler(logger, billingService),
		PaymentsHandler: payments.NewHandler(logger, paymentsService),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
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
