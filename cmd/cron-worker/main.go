package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/certtracker/certtracker-backend/internal/credentials"
	"github.com/certtracker/certtracker-backend/internal/cron"
	"github.com/certtracker/certtracker-backend/internal/notifications"
	"github.com/certtracker/certtracker-backend/internal/prefs"
	"github.com/certtracker/certtracker-backend/internal/reminders"
	"github.com/certtracker/certtracker-backend/internal/users"
	"github.com/certtracker/certtracker-backend/pkg/config"
	"github.com/certtracker/certtracker-backend/pkg/db"
	"github.com/certtracker/certtracker-backend/pkg/logger"
	"github.com/certtracker/certtracker-backend/pkg/mailer"
	"github.com/certtracker/certtracker-backend/pkg/metrics"
	"github.com/certtracker/certtracker-backend/pkg/migrate"
	"github.com/certtracker/certtracker-backend/pkg/pubsub"
	"github.com/certtracker/certtracker-backend/pkg/redis"
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

	// Publisher-only: the reminder subscription stays with the notification
	// worker.
	pubsubCfg := cfg.PubSub
	pubsubCfg.ReminderSubscription = ""
	pubsubClient, err := pubsub.NewClient(context.Background(), pubsubCfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	mailClient, err := mailer.New(cfg.Resend)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail client", err)
		os.Exit(1)
	}

	eventPublisher, err := reminders.NewPubSubPublisher(pubsubClient.ReminderPublisher())
	if err != nil {
		logg.Error(context.Background(), "failed to create event publisher", err)
		os.Exit(1)
	}

	notifier, err := reminders.NewRouter(mailClient, eventPublisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create channel router", err)
		os.Exit(1)
	}

	preferenceService, err := prefs.NewService(prefs.NewRepository(dbClient.DB()), cfg.Reminders.DefaultThresholds)
	if err != nil {
		logg.Error(context.Background(), "failed to create preference service", err)
		os.Exit(1)
	}

	ledger := reminders.NewLedgerRepository(dbClient.DB())

	dispatcher, err := reminders.NewDispatcher(reminders.DispatcherParams{
		Users:       users.NewRepository(dbClient.DB()),
		Credentials: credentials.NewRepository(dbClient.DB()),
		Preferences: preferenceService,
		Ledger:      ledger,
		Notifier:    notifier,
		Metrics:     metrics.NewDispatchMetrics(prometheus.DefaultRegisterer),
		Logger:      logg,
		Config:      cfg.Reminders,
		BaseURL:     cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder dispatcher", err)
		os.Exit(1)
	}

	dispatchJob, err := cron.NewReminderDispatchJob(dispatcher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch job", err)
		os.Exit(1)
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(
		notifications.NewRepository(dbClient.DB()), logg, cfg.Notifications.RetentionDays)
	if err != nil {
		logg.Error(context.Background(), "failed to create cleanup job", err)
		os.Exit(1)
	}
	pruneJob, err := cron.NewLedgerPruneJob(ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger prune job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(dispatchJob, cleanupJob, pruneJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
