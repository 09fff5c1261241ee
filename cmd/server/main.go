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

	"isa-chat/internal/chat"
	"isa-chat/internal/config"
	"isa-chat/internal/database"
	"isa-chat/internal/handlers"
	"isa-chat/internal/middleware"
	"isa-chat/internal/repository"
	"isa-chat/internal/router"
	"isa-chat/internal/services"
	"isa-chat/internal/web"
	"isa-chat/internal/websocket"
)

func main() {
	log.Println("🚀 Starting Isa AI Chat...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ──── Step 2: Initialize Redis Client (if needed) ────
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		var err error
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClient.Close()
		log.Println("✓ Redis connected")
	}

	// ──── Step 3: Initialize History Store ────
	var store repository.HistoryStore
	switch cfg.HistoryBackend {
	case "postgres":
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(pool); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		store = repository.NewPostgresHistoryRepo(pool, cfg.HistoryKey)
	case "redis":
		store = repository.NewRedisHistoryRepo(redisClient, cfg.HistoryKey)
	case "memory":
		store = repository.NewMemoryHistoryRepo(cfg.HistoryKey)
	default:
		store = repository.NewFileHistoryRepo(cfg.HistoryPath, cfg.HistoryKey)
	}
	log.Printf("✓ History store ready (%s, key %q)", cfg.HistoryBackend, cfg.HistoryKey)

	// ──── Step 4: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(
		cfg.GeminiAPIKey,
		cfg.GeminiModel,
		cfg.GeminiConcurrentReqs,
		cfg.GeminiTimeout,
	)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)

	// ──── Step 5: Initialize Chat Controller ────
	controller := chat.New(geminiService, store, chat.WithHistoryLimit(cfg.HistoryLimit))
	controller.Start(ctx)

	// ──── Step 6: Start WebSocket Hub ────
	var pubsub *redis.Client
	if cfg.LiveUpdates == "redis" {
		pubsub = redisClient
	}
	wsHub := websocket.NewHub(pubsub, controller.Snapshot)
	controller.OnChange(wsHub.Publish)
	go wsHub.Run(ctx)
	log.Printf("✓ WebSocket hub started (%s updates, channel %s)", cfg.LiveUpdates, wsHub.Channel())

	// ──── Step 7: Start HTTP Server ────
	renderer, err := web.NewRenderer()
	if err != nil {
		log.Fatalf("✗ Template parsing failed: %v", err)
	}

	submitLimiter := middleware.NewRateLimiter(20, time.Minute)
	defer submitLimiter.Stop()

	r := router.New(
		handlers.NewChatHandler(controller),
		handlers.NewPageHandler(controller, renderer),
		wsHub,
		submitLimiter,
		cfg.FrontendURL,
	)

	// Generation can take a while; the write timeout has to cover it.
	writeTimeout := 15 * time.Second
	if cfg.GeminiTimeout > 0 {
		writeTimeout += cfg.GeminiTimeout
	} else {
		writeTimeout = 0
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("✓ Isa AI Chat ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
