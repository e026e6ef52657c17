package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ArthurPoncin/google-ai-gen/internal/cache"
	"github.com/ArthurPoncin/google-ai-gen/internal/config"
	"github.com/ArthurPoncin/google-ai-gen/internal/generator"
	"github.com/ArthurPoncin/google-ai-gen/internal/handler"
	"github.com/ArthurPoncin/google-ai-gen/internal/middleware"
	"github.com/ArthurPoncin/google-ai-gen/internal/repository"
	"github.com/ArthurPoncin/google-ai-gen/internal/router"
	"github.com/ArthurPoncin/google-ai-gen/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Pokebox API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Open the game store
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create store directory: %v", err)
		}
	}
	store, err := repository.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Remote generator client
	genClient := generator.NewClient(cfg.Generator.URL, cfg.Generator.APIKey, cfg.Generator.Timeout)

	// Leaderboard cache: redis when configured, memory otherwise
	var viewCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis cache unavailable, falling back to memory: %v", err)
			viewCache = cache.NewMemoryCache()
		} else {
			viewCache = redisCache
			log.Println("Redis cache initialized")
		}
	default:
		viewCache = cache.NewMemoryCache()
		log.Println("Memory cache initialized")
	}
	defer viewCache.Close()

	// Game services
	gameService := service.NewGameService(store, genClient, service.Config{
		GenerationCost:  cfg.Game.GenerationCost,
		StartingBalance: cfg.Game.StartingBalance,
		BonusMin:        cfg.Game.BonusMin,
		BonusMax:        cfg.Game.BonusMax,
		MessageTTL:      cfg.Game.MessageTTL,
	})
	if err := gameService.Load(context.Background()); err != nil {
		log.Fatalf("Failed to load game state: %v", err)
	}

	leaderboardService := service.NewLeaderboardService(gameService, viewCache, cfg.Cache.TTL)

	// Handlers and router
	healthHandler := handler.New(cfg.App.Version)
	gameHandler := handler.NewGameHandler(gameService, leaderboardService)

	r := router.New(router.Config{
		Handler:        healthHandler,
		GameHandler:    gameHandler,
		AuthMiddleware: middleware.NewAuthMiddleware(cfg.App.APIKey),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
