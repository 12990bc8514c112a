package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/adapters/postgres"
	"github.com/kevin07696/subscription-service/internal/adapters/scheduler"
	"github.com/kevin07696/subscription-service/internal/adapters/yookassa"
	"github.com/kevin07696/subscription-service/internal/config"
	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/handlers"
	"github.com/kevin07696/subscription-service/internal/logging"
	planservice "github.com/kevin07696/subscription-service/internal/services/plan"
	subscriptionservice "github.com/kevin07696/subscription-service/internal/services/subscription"
	webhookservice "github.com/kevin07696/subscription-service/internal/services/webhook"
	"github.com/kevin07696/subscription-service/pkg/observability"
	"github.com/kevin07696/subscription-service/pkg/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logging.NewLogger(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := logging.NewZapLogger(zapLogger)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.ConnectionString())
	if err != nil {
		zapLogger.Fatal("failed to create database pool", zap.Error(err))
	}
	if err := pool.Ping(ctx); err != nil {
		zapLogger.Fatal("failed to ping database", zap.Error(err))
	}

	db := postgres.NewDBExecutor(pool)
	planRepo := postgres.NewPlanRepository(db)
	subRepo := postgres.NewSubscriptionRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	taskRepo := postgres.NewTaskRepository(db)

	gateway := yookassa.NewClient(yookassa.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		ShopID:    cfg.Gateway.ShopID,
		SecretKey: cfg.Gateway.SecretKey,
		Timeout:   cfg.Gateway.Timeout,
	}, &http.Client{Timeout: cfg.Gateway.Timeout}, logger)

	taskScheduler := scheduler.NewPostgresScheduler(taskRepo, logger)

	subService := subscriptionservice.NewService(
		db, planRepo, subRepo, paymentRepo, taskScheduler, gateway,
		cfg.Gateway.Currency, logger,
	)
	plnService := planservice.NewService(planRepo, logger)
	whService := webhookservice.NewService(db, subRepo, paymentRepo, taskScheduler, logger)

	worker := scheduler.NewWorker(taskRepo, scheduler.WorkerConfig{
		PollInterval: cfg.Scheduler.PollInterval,
		LockTimeout:  cfg.Scheduler.LockTimeout,
		Concurrency:  cfg.Scheduler.Concurrency,
	}, logger)
	worker.RegisterHandler(domain.TaskKindRenewalCharge, subService.HandleRenewalCharge)
	worker.RegisterHandler(domain.TaskKindExpireSubscription, subService.HandleExpiry)
	if err := worker.Start(ctx); err != nil {
		zapLogger.Fatal("failed to start scheduler worker", zap.Error(err))
	}

	healthChecker := observability.NewHealthChecker(pool)
	metricsServer := observability.StartMetricsServer(fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker)

	router := handlers.NewRouter(subService, plnService, whService, yookassa.ParseNotification, logger)
	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
		IdleTimeout:  2 * cfg.Server.RequestTimeout,
	}

	go func() {
		zapLogger.Info("api server listening", zap.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("api server failed", zap.Error(err))
		}
	}()

	// Shutdown runs in LIFO order: stop accepting requests, drain the
	// worker, then release the pool.
	manager := shutdown.NewManager(zapLogger, cfg.Server.ShutdownTimeout)
	manager.Register("database-pool", func(_ context.Context) error {
		pool.Close()
		return nil
	})
	manager.Register("scheduler-worker", func(ctx context.Context) error {
		return worker.Stop(ctx)
	})
	manager.Register("metrics-server", func(_ context.Context) error {
		return observability.ShutdownMetricsServer(metricsServer)
	})
	manager.Register("api-server", func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return apiServer.Shutdown(shutdownCtx)
	})

	manager.WaitForShutdown()
}
