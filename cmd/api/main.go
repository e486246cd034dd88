package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/duchuyngn/muaban-backend/api/routes"
	"github.com/duchuyngn/muaban-backend/internal/cancellations"
	"github.com/duchuyngn/muaban-backend/internal/eligibility"
	"github.com/duchuyngn/muaban-backend/internal/orders"
	"github.com/duchuyngn/muaban-backend/internal/payouts"
	"github.com/duchuyngn/muaban-backend/internal/returns"
	"github.com/duchuyngn/muaban-backend/internal/settlement"
	"github.com/duchuyngn/muaban-backend/internal/wallets"
	"github.com/duchuyngn/muaban-backend/pkg/auth/session"
	"github.com/duchuyngn/muaban-backend/pkg/config"
	"github.com/duchuyngn/muaban-backend/pkg/db"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
	"github.com/duchuyngn/muaban-backend/pkg/migrate"
	"github.com/duchuyngn/muaban-backend/pkg/outbox"
	"github.com/duchuyngn/muaban-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

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

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	cancelSvc, err := cancellations.NewService(ordersRepo, settlementSvc, walletsSvc, outboxSvc, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cancellation service", err)
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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			walletsSvc,
			settlementSvc,
			ordersSvc,
			cancelSvc,
			returnsSvc,
			eligibilitySvc,
			payoutsSvc,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
