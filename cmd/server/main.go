package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	"yojana-backend/internal/config"
	"yojana-backend/internal/conversation"
	"yojana-backend/internal/database"
	"yojana-backend/internal/handlers"
	"yojana-backend/internal/identity"
	"yojana-backend/internal/middleware"
	"yojana-backend/internal/models"
	"yojana-backend/internal/repository"
	"yojana-backend/internal/router"
	"yojana-backend/internal/services"
	"yojana-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("🚀 Starting Yojana backend...", zap.String("env", cfg.Env))
	logger.Info("✓ Environment variables loaded")

	ctx := context.Background()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("✗ PostgreSQL connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("✓ PostgreSQL connected")

	// ──── Step 3: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations", logger); err != nil {
		logger.Fatal("✗ Database migration failed", zap.Error(err))
	}
	logger.Info("✓ Database migrations applied")

	// ──── Step 4: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		logger.Fatal("✗ Redis connection failed", zap.Error(err))
	}
	defer redisClients.Close()
	logger.Info("✓ Redis connected")

	// ──── Step 5: Identity ────
	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		logger.Fatal("✗ Google token validator initialization failed", zap.Error(err))
	}

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	userRepo := repository.NewUserRepo(pool)
	tokenStore := identity.NewRedisTokens(redisClients.Tokens)
	adapter := identity.NewAdapter(validator, userRepo, tokenStore, jwtAuth, cfg.GoogleClientID, logger)
	logger.Info("✓ Identity adapter initialized")

	// ──── Step 6: Conversations ────
	publisher := websocket.NewPublisher(redisClients.PubSub, logger)
	sessions := conversation.NewManager(conversation.ManagerConfig{
		Endpoints: services.Endpoints{Local: cfg.RecommendLocalURL, Production: cfg.RecommendProdURL},
		Client:    services.NewRecommendClient(cfg.UpstreamConcurrency, logger, services.WithTimeout(cfg.UpstreamTimeout)),
		Publisher: publisher,
		Tokens:    adapter.TokenSourceFor,
		Logger:    logger,
	})
	reaper := conversation.NewReaper(sessions, cfg.ConversationIdleTTL, conversation.DefaultReapInterval, logger)
	reaper.Start()
	logger.Info("✓ Conversation manager started",
		zap.Int("upstream_concurrency", cfg.UpstreamConcurrency),
		zap.Duration("idle_ttl", cfg.ConversationIdleTTL))

	adapter.Watch(func(userID uuid.UUID, user *models.User) {
		ev := models.IdentityEvent{User: user}
		if user == nil {
			ev.Redirect = identity.SignInPath
			closed := sessions.CloseUser(userID)
			logger.Info("signed out", zap.Stringer("user_id", userID), zap.Int("conversations_closed", closed))
		}
		publisher.Publish(ctx, userID, models.WSMessage{Type: models.EventIdentity, Payload: ev})
	})

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, logger)
	logger.Info("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	authLimiter := middleware.NewRateLimiter(10, time.Minute, middleware.ByIP)
	chatLimiter := middleware.NewRateLimiter(cfg.ChatRequestsPerMin, time.Minute, middleware.ByUser)

	r := router.New(
		jwtAuth,
		handlers.NewAuthHandler(adapter),
		handlers.NewChatHandler(sessions),
		wsHub,
		authLimiter,
		chatLimiter,
		cfg.FrontendURL,
		logger,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)

		reaper.Stop()
		sessions.CloseAll()
		wsHub.Close()
		authLimiter.Stop()
		chatLimiter.Stop()
	}()

	logger.Info("✓ Yojana backend ready",
		zap.String("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)),
		zap.String("ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port)))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}
	<-stopped
}
