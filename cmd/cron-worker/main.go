package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/duchuyngn/muaban-backend/internal/cron"
	"github.com/duchuyngn/muaban-backend/internal/eligibility"
	"github.com/duchuyngn/muaban-backend/internal/orders"
	"github.com/duchuyngn/muaban-backend/internal/payouts"
	"github.com/duchuyngn/muaban-backend/internal/returns"
	"github.com/duchuyngn/muaban-backend/internal/settlement"
	"github.com/duchuyngn/muaban-backend/internal/wallets"
	"github.com/duchuyngn/muaban-backend/pkg/config"
	"github.com/duchuyngn/muaban-backend/pkg/db"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/metrics"
	"github.com/duchuyngn/muaban-backend/pkg/migrate"
	"github.com/duchuyngn/muaban-backend/pkg/outbox"
	"github.com/duchuyngn/muaban-backend/pkg/redis"
)

const lockKeyFormat = "mb:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())

	walletsSvc, err := wallets.NewService(wallets.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	settlementSvc, err := settlement.NewService(ordersRepo, walletsSvc, outboxSvc, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	returnsSvc, err := returns.NewService(ordersRepo, walletsSvc, outboxSvc, dbClient, cfg.Settlement, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	eligibilitySvc, err := eligibility.NewService(eligibility.NewRepository(dbClient.DB()), settlementSvc, outboxSvc, dbClient, cfg.Settlement, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create eligibility service", err)
		os.Exit(1)
	}

	payoutsSvc, err := payouts.NewService(payouts.NewRepository(dbClient.DB()), outboxSvc, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewEligibilitySweepJob(cron.EligibilitySweepJobParams{
		Logger:      logg,
		Eligibility: eligibilitySvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create eligibility sweep job", err)
		os.Exit(1)
	}

	autoRefundJob, err := cron.NewAutoRefundJob(cron.AutoRefundJobParams{
		Logger:  logg,
		Returns: returnsSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto refund job", err)
		os.Exit(1)
	}

	autoBillJob, err := cron.NewAutoBillJob(cron.AutoBillJobParams{
		Logger:  logg,
		Payouts: payoutsSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto bill job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	// Sweep first so freshly released orders are billable in the same pass.
	registry := cron.NewRegistry(sweepJob, autoRefundJob, autoBillJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
