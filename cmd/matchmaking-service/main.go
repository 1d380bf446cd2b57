package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/cheildo/nexus-clash-matchmaking/internal/apigateway"
	"github.com/cheildo/nexus-clash-matchmaking/internal/auth"
	"github.com/cheildo/nexus-clash-matchmaking/internal/config"
	"github.com/cheildo/nexus-clash-matchmaking/internal/matchmaking"
	"github.com/cheildo/nexus-clash-matchmaking/internal/pkg/kafka"
	"github.com/cheildo/nexus-clash-matchmaking/internal/pkg/logger"
	"github.com/cheildo/nexus-clash-matchmaking/internal/pkg/redis"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.Load("matchmaking-service", "./configs/development")
	if err != nil {
		slog.Error("Failed to read configuration file", "error", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Dependency Injection ---
	var opts []matchmaking.Option
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.MatchEventsTopic,
		})
		defer producer.Close()
		opts = append(opts, matchmaking.WithLifecycleHook(matchmaking.NewKafkaPublisher(producer)))
		slog.Info("Publishing match events to Kafka", "topic", cfg.Kafka.MatchEventsTopic, "brokers", cfg.Kafka.Brokers)
	}

	// --- Notification Transport ---
	// Standalone, clients connect to this process on /ws. With Redis, clients connect to
	// api-gateway processes: their commands arrive on the command channel and
	// notifications go back out on the relay channel.
	var (
		svc *matchmaking.Service
		ws  http.Handler
	)
	if cfg.Redis.Enabled {
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

		relay := apigateway.NewRedisRelay(rdb, cfg.Redis.RelayChannel, 0)
		svc = matchmaking.NewService(cfg.Matchmaking, relay, opts...)
		go relay.Run(ctx)
		go apigateway.NewCommandSubscriber(rdb, cfg.Redis.CommandChannel, svc, relay).Run(ctx)
	} else {
		cm := apigateway.NewConnectionManager()
		svc = matchmaking.NewService(cfg.Matchmaking, cm, opts...)
		ws = apigateway.NewWebsocketHandler(apigateway.NewLocalDispatcher(svc), cm, cfg.Matchmaking.LivenessProbeInterval)
	}

	matchmaking.NewScheduler(svc).Start(ctx)

	// --- HTTP Router and Middleware Setup ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	httpHandler := matchmaking.NewHTTPHandler(svc)

	r.Group(func(r chi.Router) {
		if cfg.Auth.JWTSecret != "" {
			r.Use(auth.Middleware(auth.NewVerifier(cfg.Auth.JWTSecret)))
		} else {
			slog.Warn("auth.jwt_secret is empty; trusting caller-supplied identities")
		}
		if ws != nil {
			r.Handle("/ws", ws)
		}
		r.Route("/api/v1/matchmaking", func(r chi.Router) {
			r.Use(middleware.Timeout(15 * time.Second))
			httpHandler.Routes(r)
		})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPServer.Port),
		Handler: r,
	}

	go func() {
		slog.Info("Matchmaking HTTP server listening", "port", cfg.HTTPServer.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start server", "error", err)
			os.Exit(1)
		}
	}()

	// --- gRPC Server Initialization (health + reflection) ---
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCServer.Port))
	if err != nil {
		slog.Error("Failed to listen on gRPC port", "port", cfg.GRPCServer.Port, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("matchmaking", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		slog.Info("Matchmaking gRPC server listening", "address", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC server failed to serve", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down servers...")
	healthServer.Shutdown()
	cancel() // Stop the sweep loop and the Redis loops.

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	slog.Info("Servers shut down gracefully.")
}
