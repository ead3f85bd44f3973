package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finhr/backend/internal/application/document"
	"github.com/finhr/backend/internal/application/selection"
	"github.com/finhr/backend/internal/application/sequence"
	"github.com/finhr/backend/internal/infrastructure/cache"
	"github.com/finhr/backend/internal/infrastructure/config"
	"github.com/finhr/backend/internal/infrastructure/logger"
	"github.com/finhr/backend/internal/infrastructure/persistence"
	"github.com/finhr/backend/internal/infrastructure/telemetry"
	"github.com/finhr/backend/internal/interfaces/http/handler"
	"github.com/finhr/backend/internal/interfaces/http/middleware"
	"github.com/finhr/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Fields: map[string]any{"service": cfg.App.Name, "env": cfg.App.Env},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	collector := telemetry.Collector{
		Endpoint:    cfg.Telemetry.CollectorEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:   cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		Collector: collector,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log = logProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting finhr backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", telemetry.ServiceVersion),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TraceConfig{
		Enabled:       cfg.Telemetry.Enabled,
		Collector:     collector,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Collector:      collector,
		ExportInterval: cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		Tags:            map[string]string{"env": cfg.App.Env},
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Database
	gormOpts := []logger.GormLoggerOption{logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh)}
	if cfg.Telemetry.DBLogFullSQL {
		gormOpts = append(gormOpts, logger.WithStatementLimit(0))
	}
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), gormOpts...)
	db, err := persistence.Open(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	if err := telemetry.NewDBTracingPlugin(dbTracing, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	poolMetrics, err := telemetry.NewDBPoolMetrics(meter, db.PoolStats)
	if err != nil {
		log.Fatal("Failed to register pool metrics", zap.Error(err))
	}

	// Redis is only dialled when a component needs it
	var redisClient *redis.Client
	needsRedis := cfg.Sequence.Store == config.SequenceStoreRedis ||
		(cfg.HTTP.RateLimit != "" && cfg.HTTP.RateLimitStore == "redis") ||
		cfg.Catalog.CacheTTL > 0
	if needsRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unavailable", zap.Error(err))
		}
	}

	editorMetrics, err := telemetry.NewEditorMetrics(meter, log)
	if err != nil {
		log.Fatal("Failed to register editor metrics", zap.Error(err))
	}
	httpMetrics, err := telemetry.NewHTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}

	// Code allocator
	store, err := cache.NewSequenceStoreFactory(cfg.Redis,
		cache.WithFactoryLogger(log),
		cache.WithDatabaseStore(persistence.NewGormSequenceRepository(db.DB)),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	).CreateStore(cfg.Sequence.Store)
	if err != nil {
		log.Fatal("Failed to create sequence store", zap.Error(err))
	}
	codeService := sequence.NewCodeService(store, sequence.Config{
		MaxRetries:   cfg.Sequence.MaxRetries,
		DefaultWidth: cfg.Sequence.DefaultWidth,
	}, editorMetrics, log)

	// Reference catalogs
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)
	var catalogSource selection.CatalogSource = catalogRepo
	var catalogWriter selection.CatalogWriter = catalogRepo
	var catalogCache *cache.CachedCatalogRepository
	var invalidator *cache.RedisCatalogInvalidator
	subCtx, stopSubscription := context.WithCancel(ctx)
	defer stopSubscription()
	if cfg.Catalog.CacheTTL > 0 {
		catalogCache = cache.NewCachedCatalogRepository(catalogRepo, cfg.Catalog.CacheTTL, log)
		catalogSource = catalogCache
		catalogWriter = catalogCache
		if redisClient != nil {
			invalidator = cache.NewRedisCatalogInvalidator(redisClient, cache.WithInvalidatorLogger(log))
			catalogCache.SetPublisher(invalidator)
			go func() {
				if err := invalidator.Subscribe(subCtx, catalogCache.HandleInvalidation); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Catalog invalidation subscription stopped", zap.Error(err))
				}
			}()
		}
	}
	selectionService := selection.NewSelectionService(catalogSource, cfg.Catalog.SessionTTL, editorMetrics, log)
	catalogService := selection.NewCatalogService(catalogWriter, log)

	// Documents
	documentService := document.NewDocumentService(
		persistence.NewGormDocumentRepository(db.DB),
		codeService,
		decimal.NewFromFloat(cfg.Document.Tolerance),
		editorMetrics,
		log,
	)
	editorService := document.NewEditorService(documentService, cfg.Document.DraftTTL, log)

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	checks := map[string]handler.HealthCheck{"database": db.Ping}
	if redisClient != nil {
		checks["redis"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(pingCtx).Err()
		}
	}

	var rateLimiter *limiter.Limiter
	if cfg.HTTP.RateLimit != "" {
		rlCfg := middleware.RateLimitConfig{Rate: cfg.HTTP.RateLimit, Logger: log}
		if cfg.HTTP.RateLimitStore == "redis" {
			rlCfg.Redis = redisClient
		}
		rateLimiter, err = middleware.NewRateLimiter(rlCfg)
		if err != nil {
			log.Fatal("Failed to create rate limiter", zap.Error(err))
		}
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = cfg.Telemetry.Enabled

	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = profiler.IsEnabled()

	engine, routes, err := router.NewEngine(router.EngineConfig{
		Logger:         log,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           corsCfg,
		Tracing:        tracingCfg,
		Profiling:      profilingCfg,
		Metrics:        httpMetrics,
		RateLimiter:    rateLimiter,
	}, router.Handlers{
		System:    handler.NewSystemHandler(checks, editorService.OpenDrafts),
		Selection: handler.NewSelectionHandler(selectionService),
		Catalog:   handler.NewCatalogHandler(catalogService),
		Document:  handler.NewDocumentHandler(documentService, editorService),
		Sequence:  handler.NewSequenceHandler(codeService),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	for _, route := range routes {
		log.Debug("Route registered",
			zap.String("group", route.Group),
			zap.String("method", route.Method),
			zap.String("path", route.Path),
		)
	}
	log.Info("Routes registered", zap.Int("count", len(routes)))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Open drafts and sessions are in memory; closing drops them
	if err := editorService.Close(); err != nil {
		log.Warn("Failed to close draft editor", zap.Error(err))
	}
	if err := selectionService.Shutdown(); err != nil {
		log.Warn("Failed to stop selection sessions", zap.Error(err))
	}
	stopSubscription()
	if invalidator != nil {
		if err := invalidator.Close(); err != nil {
			log.Warn("Failed to close catalog invalidator", zap.Error(err))
		}
	}
	if catalogCache != nil {
		_ = catalogCache.Close()
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn("Failed to close sequence store", zap.Error(err))
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := poolMetrics.Stop(); err != nil {
		log.Warn("Failed to stop pool metrics", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Warn("Failed to close database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Failed to stop profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shutdown meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shutdown tracer provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shutdown log provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
