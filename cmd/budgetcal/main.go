package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetcal/internal/cache"
	"budgetcal/internal/calendar"
	"budgetcal/internal/cli"
	"budgetcal/internal/core"
	apphttp "budgetcal/internal/http"
	"budgetcal/internal/log"
	"budgetcal/internal/services"
	"budgetcal/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	logger.Info("Starting budgetcal")

	cfg := cli.LoadAndValidateConfig(logger)
	tokens, _ := cfg.Tokens() // validated above

	res := cli.OpenBackend(context.Background(), logger, cfg)
	repo := res.Repository

	store := cache.NewStore[core.MonthlyBudget](cfg.CacheMaxEntries, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register(store)
	cacheManager.StartCleanup(time.Minute)
	months := services.NewMonthCache(store)

	var events services.EventPublisher
	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		events = amqpClient
	}

	accounts := services.NewAccountService(repo, months, events)
	budget := services.NewBudgetService(repo, accounts, months, events)
	processor := services.NewRecurringProcessor(repo, months, events)
	templates := services.NewTemplateService(repo, processor, months, events, calendar.SystemClock, cfg.MaterializeAheadMonths)
	runner := worker.NewRecurringRunner(processor, calendar.SystemClock, cfg.MaterializeInterval, cfg.MaterializeAheadMonths)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Tokens:             tokens,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Ready:              repo.Ping,
	}, apphttp.Services{
		Budget:    budget,
		Templates: templates,
		Accounts:  accounts,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop, finished := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})
	defer stop()

	go runner.Run(log.WithLogger(ctx, logger))

	logger.Info("Starting budgetcal server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events_enabled", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		stop()
		<-finished
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, finished)
	logger.Info("Server stopped gracefully")
}
