package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/app"
	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/churchconsole/internal/observability/tracing"
	"github.com/aryan0dhankhar/churchconsole/internal/worker"
	"github.com/aryan0dhankhar/churchconsole/pkg/config"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting churchconsole gateway",
		slog.String("environment", cfg.Environment),
		slog.String("storage", cfg.StorageBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, tracing.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "churchconsole",
		Environment: cfg.Environment,
		Insecure:    cfg.Environment != "production",
	})
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Session core: storage, API client, services; restores the persisted session
	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Error("failed to initialize app", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Watchdog keeps an idle session's token fresh
	watchdog, err := worker.NewSessionWatchdog(a.Sessions, a.Refresh, cfg.WatchdogSchedule, cfg.RefreshTimeout, log)
	if err != nil {
		log.Error("failed to initialize watchdog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	watchdogDone := make(chan struct{})
	go func() {
		watchdog.Start(ctx)
		close(watchdogDone)
	}()

	// 6. Start HTTP server
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:     a.Handler(),
		ReadTimeout: 15 * time.Second,
		// proxied calls may wait on a token refresh; websockets manage their own deadlines
		WriteTimeout: cfg.APITimeout + cfg.RefreshTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("api", cfg.APIBaseURL),
		slog.String("watchdog", cfg.WatchdogSchedule),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	<-watchdogDone
	if err := a.Close(); err != nil {
		log.Error("failed to close app", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("failed to flush traces", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}
