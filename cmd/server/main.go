/*
Package main is the entry point for the Mentor Match realtime server.

It loads configuration, initializes logging and metrics, selects Postgres or
in-memory stores, starts the realtime hub and the notification retention job,
serves HTTP, and shuts everything down in order on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mentormatch/internal/app/db"
	"mentormatch/internal/app/notification"
	"mentormatch/internal/app/realtime"
	"mentormatch/internal/app/storage"
	"mentormatch/internal/app/user"
	"mentormatch/internal/configs"
	"mentormatch/internal/handler"
	"mentormatch/internal/pkg/logx"
	"mentormatch/internal/pkg/metrics"
	"mentormatch/internal/pkg/pow"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("pow_difficulty", cfg.PowDifficulty).
		Bool("database", cfg.DatabaseDSN != "").
		Bool("storage", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	var (
		pool              *pgxpool.Pool
		userStore         user.Store
		notificationStore notification.Store
	)
	if cfg.DatabaseDSN != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to connect to database")
		}
		defer pool.Close()

		userStore = user.NewPostgresStore(pool)
		notificationStore = notification.NewPostgresStore(pool)
	} else {
		logx.Warn("DATABASE_URL not set, using in-memory stores")
		userStore = user.NewMemoryStore()
		notificationStore = notification.NewMemoryStore()
	}

	hub := realtime.NewHub(realtime.Options{
		ActivityLogSize: cfg.ActivityLogSize,
		Metrics:         appMetrics,
	})
	go hub.Run()

	var storageService storage.StorageService
	if cfg.StorageEnabled() {
		storageService, err = storage.NewStorageService(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize storage service")
		}
	}

	var challenger *pow.Challenger
	if cfg.PowDifficulty > 0 {
		challenger = pow.NewChallenger(cfg.PowDifficulty)
		defer challenger.Stop()
	}

	limiters := handler.NewLimiters()
	defer limiters.Stop()

	notifications := notification.NewService(notificationStore, hub)

	retention, err := notification.NewRetention(notificationStore, cfg.RetentionSchedule, cfg.NotificationRetention())
	if err != nil {
		logx.Fatal(err, "Invalid notification retention schedule")
	}
	retention.Start()

	deps := &handler.AppDeps{
		Config:        cfg,
		Hub:           hub,
		Users:         userStore,
		Verifier:      user.NewTokenVerifier(cfg.JWTSecret, userStore),
		Notifications: notifications,
		Storage:       storageService,
		Challenger:    challenger,
		Limiters:      limiters,
		Metrics:       appMetrics,
		Gatherer:      registry,
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Mentor Match Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	hub.Stop()
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
		logx.Warn("Realtime hub did not stop before the shutdown deadline")
	}

	retention.Stop(shutdownCtx)

	logx.Info("Server gracefully stopped.")
}
