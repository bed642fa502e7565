package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"kidchat-backend/internal/config"
	"kidchat-backend/internal/database"
	"kidchat-backend/internal/handlers"
	"kidchat-backend/internal/repository"
	"kidchat-backend/internal/router"
	"kidchat-backend/internal/services"
	"kidchat-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting KidChat Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Optional PostgreSQL Completion Log ────
	var completionLog handlers.CompletionLogStore
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		logRepo := repository.NewCompletionLogRepo(pool)
		completionLog = logRepo

		retention := services.NewRetentionScheduler(logRepo, cfg.LogRetention)
		retention.Start()
		defer retention.Stop()
	} else {
		log.Println("• DATABASE_URL not set, completion log disabled")
	}

	// ──── Step 3: Session Guard (Redis or in-memory) ────
	lockTTL := cfg.ProviderTimeout + 15*time.Second
	var guard services.SessionGuard
	var pubsub *redis.Client
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		guard = services.NewRedisSessionGuard(redisClients.Guard, lockTTL)
		pubsub = redisClients.PubSub
		log.Println("✓ Redis connected")
	} else {
		memGuard := services.NewMemorySessionGuard(lockTTL)
		defer memGuard.Stop()
		guard = memGuard
		log.Println("• REDIS_URL not set, using in-memory session guard")
	}

	// ──── Step 4: Initialize DashScope Client ────
	completion := services.NewDashScopeClient(
		cfg.DashScopeBaseURL,
		cfg.DashScopeAPIKey,
		cfg.DashScopeModel,
		cfg.ProviderTimeout,
	)
	log.Printf("✓ DashScope client initialized (model %s)", cfg.DashScopeModel)

	// ──── Step 5: Start WebSocket Hub ────
	wsHub := websocket.NewHub(pubsub)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(completion, guard, wsHub, completionLog, handlers.ChatOptions{
		UsePromptTemplate: cfg.UsePromptTemplate,
		FilterReply:       cfg.ReplyFilter,
	})
	diagnosticsHandler := handlers.NewDiagnosticsHandler(completionLog)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(chatHandler, diagnosticsHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ KidChat Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
