package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/support-router/backend/internal/agent"
	"github.com/support-router/backend/internal/analytics"
	"github.com/support-router/backend/internal/api/handlers"
	"github.com/support-router/backend/internal/cache/redis"
	"github.com/support-router/backend/internal/embedding"
	"github.com/support-router/backend/internal/knowledge"
	"github.com/support-router/backend/internal/metrics"
	"github.com/support-router/backend/internal/middleware/ratelimit"
	"github.com/support-router/backend/internal/middleware/security"
	"github.com/support-router/backend/internal/middleware/validation"
	"github.com/support-router/backend/internal/query"
	"github.com/support-router/backend/internal/retrieval"
	"github.com/support-router/backend/pkg/config"
	appLogger "github.com/support-router/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting customer support router")

	metrics.Init()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()

	embedder, closeEmbedder, err := buildEmbedder(startupCtx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to create embedder", zap.Error(err))
	}
	defer closeEmbedder()

	docs := knowledge.DefaultDocuments()
	if cfg.Knowledge.Path != "" {
		docs, err = knowledge.LoadFile(cfg.Knowledge.Path)
		if err != nil {
			appLogger.Fatal("Failed to load knowledge file", zap.String("path", cfg.Knowledge.Path), zap.Error(err))
		}
	}

	store, err := knowledge.NewStore(startupCtx, embedder, docs)
	if err != nil {
		appLogger.Fatal("Failed to build knowledge store", zap.Error(err))
	}
	metrics.KnowledgeDocuments.Set(float64(store.Len()))

	aggregator := analytics.New(analytics.Options{
		HistoryCapacity:     cfg.Analytics.HistoryCapacity,
		RollingWindow:       cfg.Analytics.RollingWindow,
		AgentSampleCapacity: cfg.Analytics.AgentSampleCapacity,
		FeedbackCapacity:    cfg.Analytics.FeedbackCapacity,
		SessionHistory:      cfg.Analytics.SessionHistory,
		TopQueries:          cfg.Analytics.TopQueries,
		Logger:              appLogger.Named("analytics"),
	})

	queryEngine := query.NewEngine(
		retrieval.NewRetriever(store),
		agent.NewRouter(),
		aggregator,
		query.WithTopK(cfg.Knowledge.TopK),
	)

	app := fiber.New(fiber.Config{
		AppName:      handlers.ServiceName,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(cfg.Server.AllowedOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + ratelimit.CustomerHeader,
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Logger:               appLogger.Named("ratelimit"),
		})
		defer limiter.Stop()
		app.Use("/api", limiter.Middleware())
	}

	app.Use("/api", validation.Middleware(validation.Config{
		MaxQueryLength: cfg.Validation.MaxQueryLength,
		Logger:         appLogger.Named("validation"),
	}))

	hub := handlers.NewHub()
	handlers.RegisterRoutes(app, handlers.Handlers{
		Health:    handlers.NewHealthHandler(store, aggregator, hub),
		Query:     handlers.NewQueryHandler(queryEngine, aggregator),
		Analytics: handlers.NewAnalyticsHandler(aggregator),
		Knowledge: handlers.NewKnowledgeHandler(store),
		WebSocket: handlers.NewWebSocketHandler(queryEngine, hub),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting",
		zap.String("address", addr),
		zap.String("embedder", embedder.Name()),
		zap.Int("documents", store.Len()),
	)

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := aggregator.Close(); err != nil {
		appLogger.Error("Failed to close analytics", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// buildEmbedder returns the configured embedder, wrapped in the redis cache when enabled. The
// returned func releases the cache connection.
func buildEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, func(), error) {
	noop := func() {}

	var base embedding.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:    cfg.Embedding.APIKey,
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, noop, err
		}
		base = e
	default:
		e, err := embedding.NewHashingEmbedder(cfg.Embedding.Dimension)
		if err != nil {
			return nil, noop, err
		}
		base = e
	}

	if !cfg.Redis.Enabled {
		return base, noop, nil
	}

	cache, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Embedding cache unavailable, continuing without it", zap.Error(err))
		return base, noop, nil
	}

	closeCache := func() {
		if err := cache.Close(); err != nil {
			appLogger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	ttl := time.Duration(cfg.Redis.TTLSec) * time.Second
	return embedding.NewCachedEmbedder(base, cache, ttl), closeCache, nil
}

func corsOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}
