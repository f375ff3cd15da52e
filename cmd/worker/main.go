package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/smart-diary/internal/cache"
	"github.com/benvon/smart-diary/internal/config"
	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/monitoring"
	"github.com/benvon/smart-diary/internal/queue"
	"github.com/benvon/smart-diary/internal/services/ai"
	"github.com/benvon/smart-diary/internal/taxonomy"
	"github.com/benvon/smart-diary/internal/telemetry"
	"github.com/benvon/smart-diary/internal/workers"
	"go.uber.org/zap"
)

const serviceName = "smart-diary-worker"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	metricsAddr := flag.String("metrics-addr", "", "Address to serve Prometheus metrics on (disabled when empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.UseQueue() {
		log.Fatal("RABBITMQ_URL is required for the worker")
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Duration("sweep_interval", cfg.SweepInterval),
	)

	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(context.Background()); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// The worker invalidates the server's query cache after each stored insight
	var invalidator workers.QueryCacheInvalidator
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewClient(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_configure_redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		invalidator = cache.NewQueryCache(redisClient, cfg.QueryCacheTTL, zapLogger)
	}

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	provider, err := ai.NewProviderRegistry().Create(cfg.AIProvider, ai.ProviderConfig{
		APIKey:     cfg.OpenAIKey,
		BaseURL:    cfg.AIBaseURL,
		Model:      cfg.AIModel,
		MaxRetries: cfg.AIMaxRetries,
		Logger:     zapLogger,
		DebugMode:  debugMode,
	})
	if err != nil {
		zapLogger.Fatal("unsupported_ai_provider", zap.String("provider", cfg.AIProvider), zap.Error(err))
	}
	oracle := ai.NewBreakerOracle(provider, ai.DefaultBreakerConfig(), zapLogger)

	entryRepo := database.NewEntryRepository(db)
	taxonomyCache := taxonomy.NewCache(entryRepo, cfg.TaxonomyTTL, zapLogger)
	analyzer := workers.NewEntryAnalyzer(
		entryRepo,
		ai.NewInsightExtractor(oracle, zapLogger),
		taxonomyCache,
		invalidator,
		jobQueue,
		zapLogger,
	)
	reprocessor := workers.NewReprocessor(entryRepo, jobQueue, zapLogger)
	dlqGC := queue.NewGarbageCollector(jobQueue, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *metricsAddr != "" {
		metricsSrv := &http.Server{Addr: *metricsAddr, Handler: monitoring.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLogger.Error("metrics_server_failed", zap.Error(err))
			}
		}()
		defer func() { _ = metricsSrv.Close() }()
	}

	go func() {
		if err := reprocessor.Start(ctx, cfg.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("reprocessor_stopped_with_error", zap.Error(err))
		}
	}()
	go func() {
		if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgChan {
			if err := analyzer.ProcessJob(ctx, msg); err != nil {
				zapLogger.Error("failed_to_process_job",
					zap.Error(err),
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)),
				)
			}
		}
	}()

	go func() {
		for err := range errChan {
			zapLogger.Error("queue_error", zap.Error(err))
			// The consumer is gone; exit so the supervisor restarts the worker
			select {
			case sigChan <- syscall.SIGTERM:
			default:
			}
		}
	}()

	sig := <-sigChan
	zapLogger.Info("worker_shutting_down", zap.String("signal", fmt.Sprint(sig)))
	cancel()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		zapLogger.Warn("worker_shutdown_timed_out")
	}
	zapLogger.Info("worker_stopped")
}
