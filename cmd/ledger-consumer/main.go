package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/duchuyngn/muaban-backend/pkg/config"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/outbox/idempotency"
	"github.com/duchuyngn/muaban-backend/pkg/pubsub"
	"github.com/duchuyngn/muaban-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: consumerName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = consumerName

	logg = logger.New(logger.Options{
		ServiceName: consumerName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	subscription := pubsubClient.LedgerSubscription()
	if subscription == nil {
		logg.Error(context.Background(), "ledger subscription is not configured", errors.New("MUABAN_PUBSUB_LEDGER_SUBSCRIPTION is required"))
		os.Exit(1)
	}

	guard, err := idempotency.NewManager(redisClient, processedTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build idempotency guard", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Logger:       logg,
		Idempotency:  guard,
		Decoders:     newLedgerDecoders(),
		Subscription: subscription,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": consumerName,
	})
	logg.Info(ctx, "starting ledger consumer")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "ledger consumer stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "ledger consumer shutting down gracefully")
}
