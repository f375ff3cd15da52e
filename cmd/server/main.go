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
	"path/filepath"
	"syscall"
	"time"

	"github.com/benvon/smart-diary/internal/cache"
	"github.com/benvon/smart-diary/internal/config"
	"github.com/benvon/smart-diary/internal/database"
	"github.com/benvon/smart-diary/internal/handlers"
	"github.com/benvon/smart-diary/internal/logger"
	"github.com/benvon/smart-diary/internal/middleware"
	"github.com/benvon/smart-diary/internal/monitoring"
	"github.com/benvon/smart-diary/internal/query"
	"github.com/benvon/smart-diary/internal/queue"
	"github.com/benvon/smart-diary/internal/services/ai"
	"github.com/benvon/smart-diary/internal/taxonomy"
	"github.com/benvon/smart-diary/internal/telemetry"
	"github.com/benvon/smart-diary/internal/workers"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "smart-diary-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	openAPIFlag := flag.String("openapi", filepath.Join("api", "openapi", "openapi.yaml"), "Path to the OpenAPI document")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("queue_enabled", cfg.UseQueue()),
		zap.Bool("redis_enabled", cfg.RedisURL != ""),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
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

	// Redis backs the rate limiter and the query cache; both degrade without it
	var redisClient *redis.Client
	var queryCache *cache.QueryCache
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewClient(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_configure_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		queryCache = cache.NewQueryCache(redisClient, cfg.QueryCacheTTL, zapLogger)
		zapLogger.Info("connected_to_redis")
	}

	limiterStore, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}

	var jobQueue queue.JobQueue
	if cfg.UseQueue() {
		q, err := connectQueue(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		jobQueue = q
		defer func() {
			if err := q.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	entryRepo := database.NewEntryRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	oracle, err := createOracle(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("failed_to_create_ai_provider", zap.Error(err))
	}
	extractor := ai.NewInsightExtractor(oracle, zapLogger)
	classifier := ai.NewIntentClassifier(oracle, zapLogger)
	taxonomyCache := taxonomy.NewCache(entryRepo, cfg.TaxonomyTTL, zapLogger)

	engineOpts := []query.Option{}
	if queryCache != nil {
		engineOpts = append(engineOpts, query.WithCache(queryCache))
	}
	engine := query.NewEngine(entryRepo, zapLogger, engineOpts...)

	entryOpts := []handlers.EntryHandlerOption{}
	if jobQueue != nil {
		entryOpts = append(entryOpts, handlers.WithEntryJobQueue(jobQueue))
	} else {
		// Without a worker the server extracts inline on create
		var invalidator workers.QueryCacheInvalidator
		if queryCache != nil {
			invalidator = queryCache
		}
		analyzer := workers.NewEntryAnalyzer(entryRepo, extractor, taxonomyCache, invalidator, nil, zapLogger)
		entryOpts = append(entryOpts, handlers.WithEntryAnalyzer(analyzer))
	}

	entryHandler := handlers.NewEntryHandler(entryRepo, zapLogger, entryOpts...)
	metricsHandler := handlers.NewMetricsHandler(engine)
	taxonomyHandler := handlers.NewTaxonomyHandler(taxonomyCache, zapLogger)
	intentHandler := handlers.NewIntentHandler(classifier, entryHandler, engine, zapLogger)

	healthOpts := []handlers.HealthOption{handlers.WithBreaker(oracle)}
	if queryCache != nil {
		healthOpts = append(healthOpts, handlers.WithHealthCheck("redis", queryCache))
	}
	if jobQueue != nil {
		healthOpts = append(healthOpts, handlers.WithHealthCheck("rabbitmq", jobQueue))
	}
	healthChecker := handlers.NewHealthChecker(db, healthOpts...)

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order: the first registered is outermost
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.RequestID)
	r.Use(monitoring.HTTPMiddleware)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL, zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	r.Use(middleware.ContentType(zapLogger))
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, cfg.RateLimit, zapLogger, time.Minute)

	// Public routes, not rate limited
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", versionInfo).Methods(http.MethodGet)
	r.Handle("/metrics", monitoring.Handler()).Methods(http.MethodGet)

	if openAPIHandler, err := handlers.NewOpenAPIHandler(*openAPIFlag); err != nil {
		zapLogger.Warn("openapi_document_unavailable", zap.String("path", *openAPIFlag), zap.Error(err))
	} else {
		openAPIHandler.RegisterRoutes(r)
	}

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitReloader.Middleware())
	entryHandler.RegisterRoutes(apiRouter.PathPrefix("/entries").Subrouter())
	metricsHandler.RegisterRoutes(apiRouter)
	taxonomyHandler.RegisterRoutes(apiRouter)
	intentHandler.RegisterRoutes(apiRouter)

	// Preflight requests are answered by the CORS middleware; this only gives them a route
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go rateLimitReloader.Start(bgCtx)

	if purger, ok := jobQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(purger, cfg.DLQGCInterval, cfg.DLQRetention, zapLogger)
		go func() {
			if err := dlqGC.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", cfg.DLQGCInterval),
			zap.Duration("retention", cfg.DLQRetention),
		)
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

// connectQueue retries with exponential backoff to ride out RabbitMQ startup
func connectQueue(url string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err
		delay := min(initialDelay*time.Duration(1<<uint(attempt)), 30*time.Second)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("rabbitmq unreachable after %d attempts: %w", maxRetries, lastErr)
}

// createOracle builds the configured provider behind a circuit breaker
func createOracle(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) (*ai.BreakerOracle, error) {
	if cfg.OpenAIKey == "" {
		zapLogger.Warn("openai_api_key_not_configured_extraction_will_degrade")
	}
	provider, err := ai.NewProviderRegistry().Create(cfg.AIProvider, ai.ProviderConfig{
		APIKey:     cfg.OpenAIKey,
		BaseURL:    cfg.AIBaseURL,
		Model:      cfg.AIModel,
		MaxRetries: cfg.AIMaxRetries,
		Logger:     zapLogger,
		DebugMode:  debugMode,
	})
	if err != nil {
		return nil, err
	}
	return ai.NewBreakerOracle(provider, ai.DefaultBreakerConfig(), zapLogger), nil
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}
