package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetcal/internal/amqp"
	"budgetcal/internal/backend"
	"budgetcal/internal/calendar"
	"budgetcal/internal/cli"
	"budgetcal/internal/log"
	"budgetcal/internal/services"
	"budgetcal/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting budget-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.EventsEnabled() {
		logger.Error("budget-worker needs AMQP_URL to receive budget events")
		os.Exit(1)
	}
	if !backend.BackendType(cfg.DataBackend).Shared() {
		logger.Error("budget-worker reads the server's database; set DATA_BACKEND=sqlite",
			"backend", cfg.DataBackend)
		os.Exit(1)
	}

	bootCtx := log.WithLogger(context.Background(), logger)
	res := cli.OpenBackend(bootCtx, logger, cfg)

	bcfg, _ := backend.FromAppConfig(cfg) // validated by OpenBackend
	exporter, err := backend.NewFactory(logger).CreateExporter(bootCtx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	// The worker only reads; no cache and no events of its own.
	accounts := services.NewAccountService(res.Repository, nil, nil)
	budget := services.NewBudgetService(res.Repository, accounts, nil, nil)
	exportWorker := worker.NewExportWorker(budget, exporter, calendar.SystemClock, cfg.MaterializeAheadMonths)

	ctx, stop, finished := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})
	defer stop()
	ctx = log.WithLogger(ctx, logger)

	logger.Info("Performing startup export...")
	if err := exportWorker.StartupExport(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
		// Don't exit - events will retry the failed months
	}

	go func() {
		if err := amqpClient.ConsumeBudgetChanged(ctx, exportWorker.HandleBudgetChanged); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
		stop()
	}()

	cli.WaitForShutdown(ctx, finished)
	logger.Info("Worker shutdown complete")
}
