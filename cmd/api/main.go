package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/lucasreyna/shopmate-backend/api/routes"
	"github.com/lucasreyna/shopmate-backend/internal/cart"
	"github.com/lucasreyna/shopmate-backend/internal/catalog"
	"github.com/lucasreyna/shopmate-backend/internal/checkout"
	"github.com/lucasreyna/shopmate-backend/internal/inventory"
	"github.com/lucasreyna/shopmate-backend/internal/notifications"
	"github.com/lucasreyna/shopmate-backend/internal/orders"
	"github.com/lucasreyna/shopmate-backend/internal/settlement"
	stripewebhook "github.com/lucasreyna/shopmate-backend/internal/webhooks/stripe"
	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/db"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/migrate"
	"github.com/lucasreyna/shopmate-backend/pkg/redis"
	"github.com/lucasreyna/shopmate-backend/pkg/stripe"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	ledger := inventory.NewLedger()
	catalogRepo := catalog.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	sessionRepo := checkout.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	notificationsRepo := notifications.NewRepository(gormDB)

	notificationsSvc, err := notifications.NewService(notificationsRepo, notifications.LogSender{Logg: logg}, cfg.Notifications, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	catalogSvc, err := catalog.NewService(catalogRepo, ledger, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartSvc, err := cart.NewService(cartRepo, catalogRepo, dbClient, cfg.Cart, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(sessionRepo, cartRepo, catalogRepo, ledger, stripeClient, dbClient, cfg.Checkout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo, ledger, dbClient, notificationsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	settlementSvc, err := settlement.NewService(sessionRepo, ordersRepo, cartRepo, catalogRepo, ledger, dbClient, notificationsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Checkout.WebhookEventGuardTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Settlement: settlementSvc,
		Guard:      webhookGuard,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:            dbClient,
			Redis:         redisClient,
			Cart:          cartSvc,
			Checkout:      checkoutSvc,
			Orders:        ordersSvc,
			Catalog:       catalogSvc,
			StripeClient:  stripeClient,
			StripeWebhook: webhookSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
