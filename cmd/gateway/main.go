package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpAdapter "github.com/atendo/realtime-gateway/internal/adapters/primary/http"
	mw "github.com/atendo/realtime-gateway/internal/adapters/primary/http/middleware"
	"github.com/atendo/realtime-gateway/internal/adapters/primary/websocket"
	"github.com/atendo/realtime-gateway/internal/adapters/secondary/postgres"
	"github.com/atendo/realtime-gateway/internal/adapters/secondary/redisstore"
	"github.com/atendo/realtime-gateway/internal/auth"
	"github.com/atendo/realtime-gateway/internal/config"
	"github.com/atendo/realtime-gateway/internal/core/services"
	"github.com/atendo/realtime-gateway/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting gateway",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Initialize Activity Store (Redis)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	activityStore := redisstore.NewActivityStore(redisClient)
	if err := activityStore.Ping(ctx); err != nil {
		logger.Error("redis ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("activity store connection established")

	// 5. Wire the Hexagon
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)

	ticketStore := postgres.NewTicketStore(pool)
	topology := websocket.NewTopology(ticketStore)

	// Presence and the hub reference each other; the broadcaster side is
	// attached after the hub exists.
	presenceService := services.NewPresenceService(activityStore, ticketStore, nil, services.PresenceConfig{
		OnlineThreshold:  cfg.Presence.OnlineThreshold,
		OfflineThreshold: cfg.Presence.OfflineThreshold,
	}, logger)

	hub := websocket.NewHub(topology, presenceService, logger)
	presenceService.SetBroadcaster(hub)

	go hub.Run(ctx)
	go presenceService.RunSweeper(ctx, cfg.Presence.SweepInterval)

	// 6. Handlers (Primary Adapters)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, activityStore, logger)
	presenceHandler := httpAdapter.NewPresenceHandler(presenceService, logger)

	// 7. Setup Router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.RateLimit.Enabled {
		generalRateLimiter := mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		r.Use(generalRateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket route with stricter handshake rate limiting.
		// Authentication happens inside the handler, before the upgrade.
		r.Group(func(r chi.Router) {
			if cfg.RateLimit.Enabled {
				handshakeRateLimiter := mw.NewRateLimiter(mw.HandshakeRateLimiterConfig())
				r.Use(handshakeRateLimiter.Middleware)
			}
			r.Get("/ws", wsHandler.ServeHTTP)
		})

		// Staff-only REST surface
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(tokenManager))
			r.Use(mw.RequireStaff)
			r.Get("/contacts/{contactId}/presence", presenceHandler.GetContactPresence)
		})
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	// Stop the hub run loop and the presence sweeper.
	cancel()

	logger.Info("server shutdown complete")
}
