package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ledgerapp "github.com/letably/backend/internal/application/ledger"
	lettingapp "github.com/letably/backend/internal/application/letting"
	reportapp "github.com/letably/backend/internal/application/report"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/infrastructure/auth"
	"github.com/letably/backend/internal/infrastructure/cache"
	"github.com/letably/backend/internal/infrastructure/config"
	"github.com/letably/backend/internal/infrastructure/event"
	"github.com/letably/backend/internal/infrastructure/logger"
	"github.com/letably/backend/internal/infrastructure/persistence"
	"github.com/letably/backend/internal/infrastructure/telemetry"
	"github.com/letably/backend/internal/interfaces/http/handler"
	"github.com/letably/backend/internal/interfaces/http/middleware"
	"github.com/letably/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Letably Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Ship logs to the collector alongside stdout
	loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	var minLogLevel zapcore.Level
	if err := minLogLevel.Set(cfg.Log.Level); err != nil {
		minLogLevel = zapcore.InfoLevel
	}
	log = loggerProvider.BridgeZapLogger(log, minLogLevel)

	// Database connection with a zap-backed GORM logger. Opening also
	// installs the agency filter callbacks: agency-scoped queries that carry
	// no agency condition are rejected as the backstop against a missed
	// WHERE clause leaking rows across agencies.
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Query latency histograms and pool stats
	dbMetrics, err := telemetry.RegisterDBMetrics(context.Background(), db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	// Per-query spans; bind parameters stay out of spans in production
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled
	dbTracing.RecordSQLValues = cfg.App.Env != "production"
	if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Agency-scoped repositories take the Database wrapper so every call runs
	// through an agency-bound transaction and the row-level security policies
	// apply. The agency repository itself works on the unscoped handle because
	// the agencies table is the isolation boundary.
	agencyRepo := persistence.NewGormAgencyRepository(db.DB)
	tenancyRepo := persistence.NewGormTenancyRepository(db)
	scheduleRepo := persistence.NewGormPaymentScheduleRepository(db)
	paymentRepo := persistence.NewGormPaymentRepository(db)

	// Event publisher: Kafka when configured, in-process bus otherwise
	var publisher shared.EventPublisher
	var inProcBus *event.InMemoryEventBus
	if cfg.Kafka.Enabled {
		kafkaPublisher := event.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error("Error closing kafka publisher", zap.Error(err))
			}
		}()
		publisher = kafkaPublisher
		log.Info("Kafka event publisher enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	} else {
		eventBus := event.NewInMemoryEventBus(log)
		if err := eventBus.Start(context.Background()); err != nil {
			log.Fatal("Failed to start event bus", zap.Error(err))
		}
		defer func() {
			if err := eventBus.Stop(context.Background()); err != nil {
				log.Error("Error stopping event bus", zap.Error(err))
			}
		}()
		publisher = eventBus
		inProcBus = eventBus
	}

	// Idempotency store for payment submission deduplication. Falls back to
	// in-memory when Redis is unavailable (single-instance deployments only).
	idempotencyFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := idempotencyFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// The in-process notification consumer dedupes by event ID so redelivery
	// never notifies twice. Kafka deployments consume from the topic instead.
	if inProcBus != nil {
		notifier := event.NewIdempotentHandler(
			event.NewNotificationLogHandler(log), idempotencyStore, log)
		inProcBus.Subscribe(notifier)
	}

	var tokenBlacklist auth.TokenBlacklist
	redisBlacklist, err := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, using in-memory token blacklist", zap.Error(err))
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		tokenBlacklist = redisBlacklist
	}

	jwtService := auth.NewJWTService(cfg.JWT)

	agencyService := lettingapp.NewAgencyService(agencyRepo)
	scheduleService := ledgerapp.NewScheduleService(scheduleRepo, tenancyRepo, publisher)
	paymentService := ledgerapp.NewPaymentService(scheduleRepo, tenancyRepo, publisher, idempotencyStore)
	tenancyService := lettingapp.NewTenancyService(tenancyRepo, agencyRepo, scheduleService, publisher)
	reportService := reportapp.NewReportService(scheduleRepo, paymentRepo)

	// Ledger business metrics with periodic arrears collection
	if cfg.Telemetry.Enabled {
		ledgerMetrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:           meterProvider.Meter("letably.ledger"),
			Logger:          log,
			ArrearsProvider: telemetry.NewGormArrearsMetricsProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
		}
		ledgerMetrics.StartPeriodicCollection(
			context.Background(),
			telemetry.NewGormAgencyProvider(db.DB),
			5*time.Minute,
		)
		defer ledgerMetrics.Stop()
	}

	handlers := router.Handlers{
		System:   handler.NewSystemHandler(),
		Agency:   handler.NewAgencyHandler(agencyService),
		Tenancy:  handler.NewTenancyHandler(tenancyService),
		Schedule: handler.NewScheduleHandler(scheduleService),
		Payment:  handler.NewPaymentHandler(paymentService),
		Report:   handler.NewReportHandler(reportService),
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order matters: request IDs come first so recovery and the
	// request logger can stamp them, and tracing sits last so spans see the
	// final request after CORS and rate limiting have had their say.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))
	engine.Use(middleware.BodyLimit(1 << 20))

	rateLimiter := middleware.NewRateLimiter(300, time.Minute)
	engine.Use(middleware.RateLimit(rateLimiter))

	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))

	// /health sits outside the versioned API tree and its middleware
	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// JWT authentication for API routes. Agency registration is the only
	// unauthenticated write: a new agency has no users to issue tokens for yet.
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/system/ping",
			"/api/v1/system/info",
			"/api/v1/agencies",
		},
		Logger: log,
	}))

	// Agency resolution from the JWT claim (or X-Agency-ID in development).
	// Not marked required here: handlers fail closed on a missing agency, and
	// a hard requirement at this layer would also block agency registration.
	r.Use(middleware.AgencyMiddlewareWithConfig(middleware.AgencyMiddlewareConfig{
		HeaderEnabled: cfg.App.Env != "production",
		JWTEnabled:    true,
		Required:      false,
		Logger:        log,
	}))

	for _, group := range router.Groups(handlers) {
		r.Register(group)
	}
	r.Setup()

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports liveness plus database reachability.
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
