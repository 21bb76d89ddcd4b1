package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fitwellhq/supportchat/internal/api"
	"github.com/fitwellhq/supportchat/internal/api/middleware"
	"github.com/fitwellhq/supportchat/internal/backend"
	"github.com/fitwellhq/supportchat/internal/catalog"
	"github.com/fitwellhq/supportchat/internal/chatstore"
	"github.com/fitwellhq/supportchat/internal/config"
	"github.com/fitwellhq/supportchat/internal/directory"
	"github.com/fitwellhq/supportchat/internal/handlers"
	"github.com/fitwellhq/supportchat/internal/session"
	"github.com/fitwellhq/supportchat/internal/upload"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// REST backend client
	client := backend.NewClient(cfg.APIBaseURL, cfg.APIToken)

	// Realtime feed store: Redis in production, in-memory in development
	var store chatstore.Store
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisStore, err := chatstore.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		store = redisStore
		redisClient = redisStore.Client()
		logger.Info().Msg("connected to Redis feed store")
	} else {
		store = chatstore.NewMemoryStore()
		logger.Warn().Msg("REDIS_URL not set, using in-memory feed store")
	}

	// Directory cache
	cache, err := directory.NewCache(ctx, cfg.DirectoryDBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("directory cache init failed")
	}
	defer cache.Close()

	if err := cache.Sync(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("initial directory sync failed, serving stale cache")
	} else {
		logger.Info().Msg("directory synced")
	}
	go syncLoop(ctx, cache, client, cfg.DirectorySyncEvery, logger)

	// Reply-template catalog, loaded once per boot
	cat, err := catalog.Load(ctx, client)
	if err != nil {
		logger.Warn().Err(err).Msg("catalog load failed, starting with empty catalog")
		cat = catalog.New(nil)
	} else {
		logger.Info().Int("commands", len(cat.Commands())).Msg("command catalog loaded")
	}

	// Session controller
	resolver := upload.NewResolver(cfg.APIBaseURL)
	uploader := upload.NewUploader(client, resolver)
	ctrl := session.NewController(store, uploader, cat, cache, cfg.AdminID, cfg.AdminName, logger)
	defer ctrl.Close()

	// Create router
	h := handlers.NewHandler(ctrl, store, cache, cat, logger)
	auth := middleware.NewAuth(client, logger)
	limiter := middleware.NewRateLimiter(redisClient, logger)
	router := api.NewRouter(logger, h, auth, limiter)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting support chat gateway")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// syncLoop refreshes the directory cache on an interval.
func syncLoop(ctx context.Context, cache *directory.Cache, client *backend.Client, every time.Duration, logger zerolog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cache.Sync(ctx, client); err != nil {
				logger.Warn().Err(err).Msg("directory sync failed")
			}
		}
	}
}
