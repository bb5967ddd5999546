// Package main is the entry point for the API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/viewfinder/internal/api"
	"github.com/onnwee/viewfinder/internal/auth"
	"github.com/onnwee/viewfinder/internal/catalog"
	"github.com/onnwee/viewfinder/internal/config"
	"github.com/onnwee/viewfinder/internal/events"
	"github.com/onnwee/viewfinder/internal/health"
	"github.com/onnwee/viewfinder/internal/idempotency"
	"github.com/onnwee/viewfinder/internal/image"
	"github.com/onnwee/viewfinder/internal/jobs"
	"github.com/onnwee/viewfinder/internal/linkpreview"
	"github.com/onnwee/viewfinder/internal/media"
	"github.com/onnwee/viewfinder/internal/middleware"
	"github.com/onnwee/viewfinder/internal/scholarship"
	"github.com/onnwee/viewfinder/internal/session"
	"github.com/onnwee/viewfinder/internal/storage"
	"github.com/onnwee/viewfinder/internal/tracing"
	"github.com/onnwee/viewfinder/internal/vitals"
)

const (
	serviceName    = "viewfinder-api"
	serviceVersion = "0.1.0"

	shutdownTimeout     = 10 * time.Second
	reaperInterval      = time.Minute
	vitalsRetention     = 90 * 24 * time.Hour
	vitalsPruneInterval = 6 * time.Hour
	rateLimitWindow     = time.Minute
	previewCacheEntries = 1024
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Viewfinder API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		bootLogger := middleware.NewLogger("production", "")
		for _, err := range errs {
			bootLogger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run wires every component, serves until ctx is cancelled and then drains
// in reverse order.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clk := clock.New()

	tracer, err := tracing.NewProvider(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	sessionMetrics := session.NewMetrics()
	previewMetrics := linkpreview.NewMetrics()
	vitalsMetrics := vitals.NewMetrics()
	for name, register := range map[string]func(prometheus.Registerer) error{
		"http":        httpMetrics.Register,
		"jobs":        jobMetrics.Register,
		"session":     sessionMetrics.Register,
		"linkpreview": previewMetrics.Register,
		"vitals":      vitalsMetrics.Register,
	} {
		if err := register(reg); err != nil {
			return fmt.Errorf("failed to register %s metrics: %w", name, err)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = newRedisClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	var bucket *storage.Bucket
	if cfg.BucketConfigured() {
		bucket, err = storage.NewBucket(storage.Config{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			Region:          cfg.R2Region,
		})
		if err != nil {
			return fmt.Errorf("failed to configure bucket: %w", err)
		}
		logger.Info("object storage configured", "bucket", bucket.Name())
	}

	catalogStore, err := catalog.NewStore(ctx, catalogSource(cfg, bucket), logger)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	manager := session.NewManager(session.ManagerConfig{
		Controller: session.Config{
			FlashReset:   cfg.FlashReset,
			BootDuration: cfg.BootDuration,
			StandbyAfter: cfg.StandbyAfter,
			RollCapacity: cfg.RollCapacity,
		},
		MaxSessions: cfg.MaxSessions,
		IdleTTL:     cfg.SessionIdleTTL,
	}, catalogStore, clk, logger, sessionMetrics)
	defer manager.Shutdown()

	hub, err := events.NewHub(events.HubConfig{AllowedOrigins: cfg.AllowedOrigins}, logger)
	if err != nil {
		return fmt.Errorf("failed to create event hub: %w", err)
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "event_stream_connections",
		Help: "Number of open session event streams",
	}, func() float64 { return float64(hub.Total()) }))

	renderer, err := image.NewProcessor(image.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create thumbnail renderer: %w", err)
	}
	var objects media.Objects
	if bucket != nil {
		objects = bucket
	}
	mediaService := media.NewService(catalogStore, objects, renderer, jobMetrics, logger)

	var previewCache linkpreview.Cache = linkpreview.NewMemoryCache(previewCacheEntries)
	if redisClient != nil {
		previewCache = linkpreview.NewRedisCache(redisClient)
	}
	previews := linkpreview.NewService(linkpreview.Config{
		AllowPrivate: cfg.LinkPreviewAllowPrivate,
	}, previewCache, previewMetrics, logger)

	scholarships, err := scholarship.NewStore(cfg.ScholarshipsPath)
	if err != nil {
		return fmt.Errorf("failed to load scholarships: %w", err)
	}

	var vitalsRepo *vitals.PostgresRepository
	var vitalsStore vitals.Repository
	if db != nil {
		vitalsRepo = vitals.NewPostgresRepository(db)
		schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := vitalsRepo.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to prepare vitals schema: %w", err)
		}
		vitalsStore = vitalsRepo
	}
	recorder := vitals.NewRecorder(vitals.RecorderConfig{}, vitalsStore, vitalsMetrics, jobMetrics, clk, logger)

	limitStore := rateLimitStore(redisClient, clk, httpMetrics)
	replays := idempotencyStore(redisClient, clk)

	healthCfg := api.HealthHandlersConfig{}
	if redisClient != nil {
		healthCfg.RedisChecker = health.NewRedisChecker(redisClient)
	}
	if db != nil {
		healthCfg.DBChecker = health.NewDBChecker(db)
	}
	if bucket != nil {
		healthCfg.BucketChecker = bucket
	}

	routes := api.RouterConfig{
		Service:      serviceName,
		Version:      serviceVersion,
		Health:       api.NewHealthHandlers(healthCfg),
		Sessions:     api.NewSessionHandlers(manager, hub, sessionMetrics, logger),
		Catalog:      api.NewCatalogHandlers(catalogStore, manager, api.CachePolicy{SMaxAge: 5 * time.Minute, StaleWhileRevalidate: 10 * time.Minute}, logger),
		Media:        api.NewMediaHandlers(mediaService, api.CachePolicy{SMaxAge: 5 * time.Minute, StaleWhileRevalidate: 10 * time.Minute}, logger),
		LinkPreview:  api.NewLinkPreviewHandlers(previews),
		Scholarships: api.NewScholarshipHandlers(scholarships, previews, api.CachePolicy{SMaxAge: time.Hour, StaleWhileRevalidate: 24 * time.Hour}),
		Vitals:       api.NewVitalsHandlers(recorder),
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		PreviewLimit: limiter(limitStore, "preview", cfg.PreviewRateLimit, nil, httpMetrics),
		VitalsLimit:  limiter(limitStore, "vitals", cfg.VitalsRateLimit, nil, httpMetrics),
		AdminLimit:   limiter(limitStore, "admin", cfg.AdminRateLimit, middleware.SubjectKeyFunc(), httpMetrics),
		Idempotency:  middleware.Idempotency(replays, middleware.IdempotencyConfig{Expiry: cfg.IdempotencyTTL, Metrics: httpMetrics, Logger: logger}),
	}
	if cfg.JWTSecret != "" {
		jwtService, err := auth.NewJWTService(cfg.JWTSecret, auth.WithPreviousSecret(cfg.JWTPreviousSecret))
		if err != nil {
			return fmt.Errorf("failed to configure admin auth: %w", err)
		}
		routes.Admin = middleware.RequireScope(jwtService, auth.ScopeAdmin, httpMetrics)
	} else {
		logger.Warn("admin routes disabled, no JWT secret configured")
	}

	mux := api.NewRouter(routes)
	profiling := middleware.ProfilingConfig{Enabled: cfg.ProfilingEnabled, Environment: cfg.Env}
	mux.Handle("GET /debug/profiling", middleware.ProfilingStatus(profiling))

	handler := chain(mux,
		middleware.RequestID,
		middleware.Tracing(serviceName),
		middleware.Logging(logger),
		middleware.Recovery(logger, httpMetrics),
		middleware.HTTPMetrics(httpMetrics),
		middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}),
		limiter(limitStore, "global", cfg.GlobalRateLimit, nil, httpMetrics),
		middleware.Profiling(profiling, logger),
	)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	background := startBackground(bgCtx, backgroundJobs{
		clock:          clk,
		logger:         logger,
		jobs:           jobMetrics,
		manager:        manager,
		catalog:        catalogStore,
		reloadInterval: cfg.CatalogReloadInterval,
		recorder:       recorder,
		pruner:         vitalsPruner(vitalsRepo),
		limits:         limitStore,
		replays:        replays,
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		cancelBackground()
		background.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// The recorder flushes pending vitals on its way out.
	cancelBackground()
	background.Wait()

	logger.Info("server stopped")
	return nil
}

func newRedisClient(ctx context.Context, rawURL string, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// Rate limits fail open and the preview cache degrades to misses.
		logger.Warn("redis unreachable at startup", "error", err)
	}
	return client, nil
}

// catalogSource prefers the bucket object when a catalog key is configured.
func catalogSource(cfg *config.Config, bucket *storage.Bucket) catalog.Source {
	if cfg.CatalogKey != "" && bucket != nil {
		return catalog.BucketSource{Bucket: bucket, Key: cfg.CatalogKey}
	}
	return catalog.FileSource{Path: cfg.CatalogPath}
}

func rateLimitStore(client *redis.Client, clk clock.Clock, metrics *middleware.Metrics) middleware.RateLimitStore {
	if client != nil {
		return middleware.NewRedisRateLimitStore(client).WithMetrics(metrics)
	}
	return middleware.NewInMemoryRateLimitStore(clk)
}

// idempotencyStore shares replays across replicas through Redis when it is
// configured.
func idempotencyStore(client *redis.Client, clk clock.Clock) idempotency.Store {
	if client != nil {
		return idempotency.NewRedisStore(client)
	}
	return idempotency.NewInMemoryStore(clk)
}

// limiter builds a per-minute rate limit. A nil keyFunc keys by client IP.
func limiter(store middleware.RateLimitStore, name string, perMinute int, keyFunc middleware.KeyFunc, metrics *middleware.Metrics) api.Middleware {
	keyType := "ip"
	if keyFunc != nil {
		keyType = "subject"
	}
	return middleware.RateLimiter(store, middleware.RateLimitPolicy{
		Name:    name,
		Config:  middleware.RateLimitConfig{RequestsPerWindow: perMinute, WindowDuration: rateLimitWindow},
		KeyFunc: keyFunc,
		KeyType: keyType,
		Metrics: metrics,
	})
}

// chain applies middlewares so the first one listed sees the request first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func vitalsPruner(repo *vitals.PostgresRepository) pruner {
	if repo == nil {
		return nil
	}
	return repo
}
