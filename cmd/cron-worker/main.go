package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucasreyna/shopmate-backend/internal/cart"
	"github.com/lucasreyna/shopmate-backend/internal/catalog"
	"github.com/lucasreyna/shopmate-backend/internal/checkout"
	"github.com/lucasreyna/shopmate-backend/internal/cron"
	"github.com/lucasreyna/shopmate-backend/internal/inventory"
	"github.com/lucasreyna/shopmate-backend/internal/notifications"
	"github.com/lucasreyna/shopmate-backend/pkg/config"
	"github.com/lucasreyna/shopmate-backend/pkg/db"
	"github.com/lucasreyna/shopmate-backend/pkg/logger"
	"github.com/lucasreyna/shopmate-backend/pkg/metrics"
	"github.com/lucasreyna/shopmate-backend/pkg/migrate"
	"github.com/lucasreyna/shopmate-backend/pkg/redis"
	"github.com/lucasreyna/shopmate-backend/pkg/stripe"
)

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
	notificationsRepo := notifications.NewRepository(gormDB)

	notificationsSvc, err := notifications.NewService(notificationsRepo, notifications.LogSender{Logg: logg}, cfg.Notifications, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
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

	sweepJob, err := cron.NewCheckoutSweepJob(cron.CheckoutSweepJobParams{
		Logger:   logg,
		Checkout: checkoutSvc,
		Carts:    cartSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout sweep job", err)
		os.Exit(1)
	}

	retryJob, err := cron.NewNotificationRetryJob(cron.NotificationRetryJobParams{
		Logger:        logg,
		Notifications: notificationsSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification retry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cfg.Cron.LockKey), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, retryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
