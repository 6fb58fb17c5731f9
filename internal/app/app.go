package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/checkout-engine/internal/config"
	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/event"
	handler "github.com/utafrali/checkout-engine/internal/handler/http"
	"github.com/utafrali/checkout-engine/internal/provider"
	"github.com/utafrali/checkout-engine/internal/provider/mock"
	"github.com/utafrali/checkout-engine/internal/repository/postgres"
	redisrepo "github.com/utafrali/checkout-engine/internal/repository/redis"
	"github.com/utafrali/checkout-engine/internal/sender"
	"github.com/utafrali/checkout-engine/internal/service"
	"github.com/utafrali/checkout-engine/internal/worker"
	"github.com/utafrali/checkout-engine/migrations"
	"github.com/utafrali/checkout-engine/pkg/database"
	"github.com/utafrali/checkout-engine/pkg/health"
	"github.com/utafrali/checkout-engine/pkg/httpclient"
	pkgkafka "github.com/utafrali/checkout-engine/pkg/kafka"
	"github.com/utafrali/checkout-engine/pkg/tracing"
)

const serviceName = "checkout-engine"

// App wires together all dependencies and runs the checkout engine.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	fanout         *service.NotificationFanout
	expiryWorker   *worker.ExpiryWorker
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize Redis for checkout session storage.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("host", cfg.RedisHost))

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Repositories.
	stockRepo := postgres.NewStockRepository(pool)
	intentRepo := postgres.NewIntentRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	sessionRepo := redisrepo.NewSessionRepository(redisClient)

	eventProducer := event.NewProducer(producer)

	// HTTP client with circuit breaker for outbound calls (shipping rates,
	// carrier bookings).
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	})

	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         "checkout-downstream",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Int("timeout_seconds", cfg.CBTimeout),
	)

	// Payment gateways. The mock gateway stands in for a card processor; it
	// signs callbacks with the shared secret the way a real one would.
	gateways := map[string]provider.Gateway{
		"mock": mock.NewGateway(cfg.PaymentCallbackSecret),
		"cash": provider.NewCashGateway(),
	}

	// Services.
	stockGuard := service.NewStockGuard(stockRepo, stockRepo, logger)
	paymentService := service.NewPaymentService(intentRepo, gateways, eventProducer, logger)
	finalizer := service.NewOrderFinalizer(orderRepo, eventProducer, logger)

	senders := map[domain.TaskType]sender.Sender{
		domain.TaskEmail:        sender.NewEmailSender(producer),
		domain.TaskNotification: sender.NewAdminSender(pool),
		domain.TaskCarrierSync:  sender.NewCarrierSender(cbClient, cfg.CarrierAPIURL),
	}

	fanoutCfg := service.DefaultFanoutConfig()
	fanoutCfg.Workers = cfg.FanoutWorkers
	fanoutCfg.QueueSize = cfg.FanoutQueueSize
	fanoutCfg.MaxAttempts = cfg.FanoutMaxAttempts
	fanout := service.NewNotificationFanout(taskRepo, senders, eventProducer, logger, fanoutCfg)

	shipping := service.NewShippingResolver(cbClient, cfg.ShippingRateURL)

	checkoutService := service.NewCheckoutService(
		sessionRepo,
		couponRepo,
		orderRepo,
		stockGuard,
		paymentService,
		finalizer,
		fanout,
		shipping,
		logger,
		service.CheckoutConfig{
			SessionTTL:     time.Duration(cfg.SessionTTLMins) * time.Minute,
			ReservationTTL: time.Duration(cfg.ReservationTTLMins) * time.Minute,
			Currency:       cfg.Currency,
		},
	)

	expiryWorker := worker.NewExpiryWorker(
		paymentService,
		stockGuard,
		stockRepo,
		logger,
		time.Duration(cfg.ExpirySweepSecs)*time.Second,
		time.Duration(cfg.IntentWindowMins)*time.Minute,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(checkoutService, healthHandler, logger, handler.RouterConfig{
		JWTSecret:    cfg.JWTSecret,
		WebhookRPS:   cfg.WebhookRPS,
		WebhookBurst: cfg.WebhookBurst,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		fanout:         fanout,
		expiryWorker:   expiryWorker,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the background workers and the HTTP server, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.fanout.Start(ctx)
	a.expiryWorker.Start(ctx)

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Expiry worker and notification fanout (finish in-flight dispatches)
// 3. Tracer (flush pending spans from drained requests)
// 4. Kafka producer
// 5. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.expiryWorker.Stop()
	a.fanout.Stop()

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
