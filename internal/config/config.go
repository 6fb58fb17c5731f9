package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/utafrali/checkout-engine/pkg/config"
)

// Config holds all configuration for the checkout engine.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"checkout"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"checkout_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"checkout_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (checkout session store)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Checkout flow
	Currency              string `env:"CHECKOUT_CURRENCY" envDefault:"USD"`
	SessionTTLMins        int    `env:"CHECKOUT_SESSION_TTL_MINUTES" envDefault:"30"`
	ReservationTTLMins    int    `env:"STOCK_RESERVATION_TTL_MINUTES" envDefault:"15"`
	IntentWindowMins      int    `env:"PAYMENT_INTENT_WINDOW_MINUTES" envDefault:"30"`
	ExpirySweepSecs       int    `env:"EXPIRY_SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	PaymentCallbackSecret string `env:"PAYMENT_CALLBACK_SECRET,notEmpty"`

	// Fanout dispatcher
	FanoutWorkers     int `env:"FANOUT_WORKERS" envDefault:"4"`
	FanoutQueueSize   int `env:"FANOUT_QUEUE_SIZE" envDefault:"256"`
	FanoutMaxAttempts int `env:"FANOUT_MAX_ATTEMPTS" envDefault:"5"`

	// External collaborators
	ShippingRateURL string `env:"SHIPPING_RATE_URL" envDefault:"http://localhost:8091"`
	CarrierAPIURL   string `env:"CARRIER_API_URL" envDefault:"http://localhost:8092"`

	// Circuit breaker for outbound calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Bearer token auth on the client-facing routes; empty disables it and
	// identity falls back to the X-User-ID header.
	JWTSecret string `env:"JWT_SECRET" envDefault:""`

	// Webhook rate limiting
	WebhookRPS   int `env:"WEBHOOK_RATE_LIMIT_RPS" envDefault:"10"`
	WebhookBurst int `env:"WEBHOOK_RATE_LIMIT_BURST" envDefault:"20"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout engine config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CHECKOUT_CURRENCY must be a 3-letter code, got %q", c.Currency)
	}
	if c.SessionTTLMins <= 0 || c.ReservationTTLMins <= 0 {
		return fmt.Errorf("session and reservation TTLs must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for name, rawURL := range map[string]string{
		"SHIPPING_RATE_URL": c.ShippingRateURL,
		"CARRIER_API_URL":   c.CarrierAPIURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	return nil
}
