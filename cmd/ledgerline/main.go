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
	"github.com/joho/godotenv"

	"github.com/ledgerline-erp/ledgerline-erp/internal/app"
	"github.com/ledgerline-erp/ledgerline-erp/internal/closing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
	"github.com/ledgerline-erp/ledgerline-erp/internal/costing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/invoicing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/masterdata"
	"github.com/ledgerline-erp/ledgerline-erp/internal/payments"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/cache"
	"github.com/ledgerline-erp/ledgerline-erp/internal/shared"
	"github.com/ledgerline-erp/ledgerline-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	periodLocker := shared.NewPeriodLocker(redisClient, cfg.LockTTL)

	coaRepo := coa.NewRepository(pool)
	coaService := coa.NewService(coaRepo)
	coaHandler := coa.NewHandler(logger, coaService)

	periodsRepo := periods.NewRepository(pool)
	periodsService := periods.NewService(periodsRepo)
	periodsHandler := periods.NewHandler(logger, periodsService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	costingRepo := costing.NewRepository(pool)
	costingService := costing.NewService(costingRepo)
	costingHandler := costing.NewHandler(logger, costingService)

	invoicingRepo := invoicing.NewRepository(pool)
	invoicingService := invoicing.NewService(invoicingRepo, coaRepo, auditLogger)
	invoicingHandler := invoicing.NewHandler(logger, invoicingService)

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, coaRepo, auditLogger)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	closingRepo := closing.NewRepository(pool)
	closingService := closing.NewService(closingRepo, coaRepo, auditLogger, periodLocker)
	closingHandler := closing.NewHandler(logger, closingService)

	masterdataRepo := masterdata.NewRepository(pool)
	masterdataService := masterdata.NewService(masterdataRepo)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		COAHandler:        coaHandler,
		PeriodsHandler:    periodsHandler,
		LedgerHandler:     ledgerHandler,
		CostingHandler:    costingHandler,
		InvoicingHandler:  invoicingHandler,
		PaymentsHandler:   paymentsHandler,
		ClosingHandler:    closingHandler,
		MasterDataHandler: masterdataHandler,
		JobHandler:        jobHandler,
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
