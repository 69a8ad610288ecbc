package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/certtracker/certtracker-backend/api/routes"
	"github.com/certtracker/certtracker-backend/internal/auth"
	"github.com/certtracker/certtracker-backend/internal/credentials"
	"github.com/certtracker/certtracker-backend/internal/notifications"
	"github.com/certtracker/certtracker-backend/internal/prefs"
	"github.com/certtracker/certtracker-backend/internal/reminders"
	"github.com/certtracker/certtracker-backend/internal/users"
	"github.com/certtracker/certtracker-backend/pkg/auth/session"
	"github.com/certtracker/certtracker-backend/pkg/config"
	"github.com/certtracker/certtracker-backend/pkg/db"
	"github.com/certtracker/certtracker-backend/pkg/logger"
	"github.com/certtracker/certtracker-backend/pkg/mailer"
	"github.com/certtracker/certtracker-backend/pkg/migrate"
	"github.com/certtracker/certtracker-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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

	authParams := auth.ServiceParams{
		Users:       users.NewRepository(dbClient.DB()),
		Sessions:    sessionManager,
		ResetTokens: redisClient,
		JWT:         cfg.JWT,
		Password:    cfg.Password,
		BaseURL:     cfg.App.BaseURL,
		Logger:      logg,
	}
	if cfg.Resend.APIKey != "" {
		mailClient, err := mailer.New(cfg.Resend)
		if err != nil {
			logg.Error(context.Background(), "failed to create mail client", err)
			os.Exit(1)
		}
		authParams.Mailer = mailClient
	} else {
		logg.Warn(context.Background(), "resend api key not set, password reset emails disabled")
	}

	authService, err := auth.NewService(authParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	credentialService, err := credentials.NewService(
		credentials.NewRepository(dbClient.DB()),
		reminders.NewLedgerRepository(dbClient.DB()),
		dbClient,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create credential service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	preferenceService, err := prefs.NewService(prefs.NewRepository(dbClient.DB()), cfg.Reminders.DefaultThresholds)
	if err != nil {
		logg.Error(context.Background(), "failed to create preference service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := routes.NewRouter(routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Sessions:      sessionManager,
		Registry:      registry,
		Auth:          authService,
		Credentials:   credentialService,
		Notifications: notificationService,
		Preferences:   preferenceService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}
