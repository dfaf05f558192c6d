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

	"github.com/aryan0dhankhar/churchconsole/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/churchconsole/internal/mockapi"
	"github.com/aryan0dhankhar/churchconsole/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger(cfg.LogLevel)

	mock := mockapi.New(mockapi.Config{
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.MockAPITokenTTL,
	}, log)
	defer mock.Close()

	if err := mock.SeedDemo(); err != nil {
		log.Error("failed to seed demo accounts", slog.String("error", err.Error()))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MockAPIPort),
		Handler:      mock.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("mock api starting",
		slog.Int("port", cfg.MockAPIPort),
		slog.Duration("token_ttl", cfg.MockAPITokenTTL),
		slog.String("demo_password", mockapi.DemoPassword),
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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	log.Info("mock api stopped")
}
