package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cheildo/nexus-clash-matchmaking/internal/apigateway"
	"github.com/cheildo/nexus-clash-matchmaking/internal/auth"
	"github.com/cheildo/nexus-clash-matchmaking/internal/config"
	"github.com/cheildo/nexus-clash-matchmaking/internal/pkg/logger"
	"github.com/cheildo/nexus-clash-matchmaking/internal/pkg/redis"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.Load("api-gateway", "./configs/development")
	if err != nil {
		slog.Error("Failed to read configuration file", "error", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	if !cfg.Redis.Enabled {
		slog.Error("The gateway reaches the matchmaking service through Redis; set redis.enabled")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Redis Channels ---
	rdb, err := redis.NewClient(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("Redis connection successful.")

	cm := apigateway.NewConnectionManager()
	go apigateway.NewRelaySubscriber(rdb, cfg.Redis.RelayChannel, cm).Run(ctx)
	dispatcher := apigateway.NewRedisDispatcher(rdb, cfg.Redis.CommandChannel)

	// --- HTTP Router and Middleware Setup ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		if cfg.Auth.JWTSecret != "" {
			r.Use(auth.Middleware(auth.NewVerifier(cfg.Auth.JWTSecret)))
		} else {
			slog.Warn("auth.jwt_secret is empty; trusting caller-supplied identities")
		}
		r.Handle("/ws", apigateway.NewWebsocketHandler(dispatcher, cm, cfg.Matchmaking.LivenessProbeInterval))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPServer.Port),
		Handler: r,
	}

	go func() {
		slog.Info("API Gateway listening", "port", cfg.HTTPServer.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start server", "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down gateway...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Gateway forced to shutdown", "error", err)
	}
	cancel() // Stop the relay subscriber.
	slog.Info("Gateway shut down gracefully.")
}
