package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/SKB-CADDep/authentication-service/internal/core/port"
	"github.com/SKB-CADDep/authentication-service/internal/infra/config"
	"github.com/SKB-CADDep/authentication-service/internal/infra/database"
	kafkainfra "github.com/SKB-CADDep/authentication-service/internal/infra/kafka"
	ldapinfra "github.com/SKB-CADDep/authentication-service/internal/infra/ldap"
	"github.com/SKB-CADDep/authentication-service/internal/infra/logger"
	redisinfra "github.com/SKB-CADDep/authentication-service/internal/infra/redis"
	"github.com/SKB-CADDep/authentication-service/internal/infra/security"
	"github.com/SKB-CADDep/authentication-service/internal/infra/telemetry"
	postgresrepo "github.com/SKB-CADDep/authentication-service/internal/repository/postgres"
	redisrepo "github.com/SKB-CADDep/authentication-service/internal/repository/redis"
	"github.com/SKB-CADDep/authentication-service/internal/transport/http/middleware"
	"github.com/SKB-CADDep/authentication-service/internal/transport/http/routes"
	"github.com/SKB-CADDep/authentication-service/internal/usecase"
)

// Application wires the directory client, the identity store, and the token
// engine into a runnable HTTP service.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
	kafka  *kafkainfra.Producer
}

// New builds the application from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	tokenEngine, err := security.NewTokenEngine(cfg.JWT)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token engine: %w", err)
	}

	directory := ldapinfra.NewClient(cfg.LDAP, log)

	var redisClient *redisinfra.Client
	var rateLimiter *middleware.RateLimiter
	if cfg.Redis.Enabled {
		redisClient, err = redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}

		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: "auth:rate-limit",
			TTL:       window * 2,
		})
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
	}

	var kafkaProducer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	identities := postgresrepo.NewIdentityRepository(pool)
	reconciler := usecase.NewReconcilerService(identities, eventPublisher, log)

	authService, err := usecase.NewAuthService(directory, reconciler, identities, tokenEngine, eventPublisher, log)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pool.Close()
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pool.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	var cache routes.CacheChecker
	if redisClient != nil {
		cache = redisClient
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Auth:        authService,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       cache,
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
		kafka:  kafkaProducer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting authentication API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
