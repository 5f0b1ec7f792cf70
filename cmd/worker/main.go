package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/rentfolio/rentfolio/internal/app"
	"github.com/rentfolio/rentfolio/internal/billing"
	"github.com/rentfolio/rentfolio/internal/commission"
	"github.com/rentfolio/rentfolio/internal/documents"
	"github.com/rentfolio/rentfolio/internal/leases"
	"github.com/rentfolio/rentfolio/internal/ledger"
	"github.com/rentfolio/rentfolio/internal/payments"
	"github.com/rentfolio/rentfolio/internal/platform/cache"
	"github.com/rentfolio/rentfolio/internal/platform/db"
	"github.com/rentfolio/rentfolio/internal/refdata"
	"github.com/rentfolio/rentfolio/internal/sequence"
	"github.com/rentfolio/rentfolio/internal/shared"
	"github.com/rentfolio/rentfolio/jobs"
	"github.com/rentfolio/rentfolio/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	registry := documents.NewRegistry(pool, documents.NewDiskStore(cfg.DocumentsDir))
	pdfClient := report.NewClient(cfg.GotenbergURL)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}
	renderer := jobs.NewRenderer(billingService, paymentsService, registry, pdfClient, logger)
	billingRun := jobs.NewBillingRun(leasesRepo, billingService, logger)
	integrityScan := jobs.NewIntegrityScan(ledgerService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceRender, Handler: renderer.HandleInvoiceRender},
			{Type: jobs.TaskReceiptRender, Handler: renderer.HandleReceiptRender},
			{Type: jobs.TaskBillingRun, Handler: billingRun.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityScan.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BillingRunCron, Task: jobs.NewBillingRunTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IntegrityRunCron, Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
