package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ticketmatch/internal/api"
	"ticketmatch/internal/api/handlers"
	"ticketmatch/internal/cache"
	"ticketmatch/internal/embedding"
	"ticketmatch/internal/repository"
	"ticketmatch/internal/service"
	"ticketmatch/internal/vectorindex"
	"ticketmatch/pkg/auth"
	"ticketmatch/pkg/config"
	"ticketmatch/pkg/logger"
	"ticketmatch/pkg/metrics"
	"ticketmatch/pkg/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := logger.New(cfg.Logger.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ticketmatch service")

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Repositories
	issueRepo, err := repository.NewIssueRepository(ctx, db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize issue repository", zap.Error(err))
	}
	embeddingRepo, err := repository.NewEmbeddingRepository(ctx, db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize embedding repository", zap.Error(err))
	}

	// Cache: in-memory L1 always, shared Postgres L2 unless disabled.
	l1 := cache.NewMemoryStore(cfg.Cache.MemoryCapacityBytes)
	var l2 cache.Store
	if cfg.Cache.SharedEnabled {
		l2, err = cache.NewPostgresStore(ctx, db, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize shared cache", zap.Error(err))
		}
	}
	store := cache.NewMultiLevel(l1, l2, cfg.Cache.PromoteTTL, appLogger, m)

	// Embedding client: a configured API key selects the HTTP provider, an
	// empty one the deterministic local embedder (dev and test environments).
	var embedder embedding.Client
	if cfg.Embedding.APIKey != "" {
		embedder = embedding.NewHTTPClient(&cfg.Embedding, store, appLogger, m)
	} else {
		appLogger.Warn("No embedding API key configured, using local embedder")
		embedder = embedding.NewLocalClient(cfg.Embedding.Dimensions, cfg.Embedding.MaxTextLength)
	}

	index, err := vectorindex.NewPgVectorIndex(ctx, db, cfg.Embedding.Dimensions, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize vector index", zap.Error(err))
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration)

	// Services
	thresholdService := service.NewThresholdService(issueRepo, embedder, index, store, &cfg.Matching, appLogger)
	matcherService := service.NewMatcherService(thresholdService, embedder, index, &cfg.Matching, appLogger, m)
	indexerService := service.NewIndexerService(issueRepo, embeddingRepo, embedder, index, store, &cfg.Embedding, appLogger)

	// Handlers
	matchHandler := handlers.NewMatchHandler(matcherService, appLogger)
	eventHandler := handlers.NewEventHandler(indexerService, appLogger)

	app := api.SetupRouter(matchHandler, eventHandler, jwtManager, registry, appLogger)

	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
