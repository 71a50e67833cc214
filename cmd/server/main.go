package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecowise-backend/internal/catalog"
	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/detector"
	"github.com/ecowise-backend/internal/handler"
	"github.com/ecowise-backend/internal/kafka"
	"github.com/ecowise-backend/internal/memory"
	"github.com/ecowise-backend/internal/normalizer"
	"github.com/ecowise-backend/internal/postgres"
	"github.com/ecowise-backend/internal/redis"
	"github.com/ecowise-backend/internal/scoring"
	"github.com/ecowise-backend/internal/service"
	"github.com/ecowise-backend/internal/storage"
	"github.com/ecowise-backend/internal/websocket"
	"github.com/ecowise-backend/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the reward catalog
	rewards := catalog.Default()
	if cfg.Catalog.Path != "" {
		rewards, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			logger.Error("failed to load reward catalog", "path", cfg.Catalog.Path, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("reward catalog loaded", "entries", rewards.Len())

	// Initialize the ledger: PostgreSQL when enabled, in-memory otherwise
	var (
		ledger  service.Ledger
		centers service.CenterStore
	)
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer repo.Close()

		if err := repo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to PostgreSQL")

		ledger = repo
		centers = repo
	} else {
		logger.Info("using in-memory ledger")
		ledger = memory.NewLedger()
		centers = memory.NewCenterStore()
	}

	// Initialize the Redis rank cache when enabled
	var (
		redisCache *redis.Cache
		cache      service.LeaderboardCache
	)
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		redisCache, err = redis.NewCache(&cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		logger.Info("connected to Redis")
		cache = redisCache
	}

	// Initialize the detection backend
	var det detector.Detector
	switch cfg.Detector.Mode {
	case "http":
		logger.Info("using HTTP detection backend", "endpoint", cfg.Detector.Endpoint)
		det = detector.NewHTTPDetector(&cfg.Detector, logger)
	default:
		logger.Info("using mock detection backend")
		seed := cfg.Detector.MockSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		det = detector.NewMockDetector(rand.New(rand.NewSource(seed)))
	}
	defer det.Close()

	// Initialize upload storage
	uploads, err := storage.NewStore(&cfg.Uploads, logger)
	if err != nil {
		logger.Error("failed to initialize upload storage", "dir", cfg.Uploads.Dir, "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	submissionService := service.NewSubmissionService(
		uploads,
		det,
		normalizer.New(logger),
		scoring.New(rewards, logger),
		ledger,
		cache,
		logger,
	)
	submissionService.SetHub(wsHub)

	leaderboardService := service.NewLeaderboardService(
		cache,
		ledger,
		centers,
		&cfg.Leaderboard,
		logger,
	)

	// Initialize sync worker when the Redis cache is present
	var syncWorker *worker.SyncWorker
	if redisCache != nil {
		syncWorker = worker.NewSyncWorker(redisCache, ledger, &cfg.Sync, logger)

		// Rebuild the rank cache from the ledger on startup (recovery)
		logger.Info("rebuilding leaderboard cache from ledger")
		if err := syncWorker.RebuildCache(ctx); err != nil {
			logger.Warn("failed to rebuild cache on startup", "error", err)
		}

		if cfg.Sync.Enabled {
			if err := syncWorker.Start(ctx); err != nil {
				logger.Error("failed to start sync worker", "error", err)
				os.Exit(1)
			}
		}
	}

	// Initialize Kafka consumer for high-load event ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, submissionService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(submissionService, leaderboardService, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop sync worker
	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
