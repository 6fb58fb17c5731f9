package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/checkout-engine/internal/service"
	"github.com/utafrali/checkout-engine/pkg/health"
	"github.com/utafrali/checkout-engine/pkg/middleware"
)

const serviceName = "checkout-engine"

// RouterConfig holds auth and rate limit settings for the public surface.
type RouterConfig struct {
	// JWTSecret enables bearer token auth on the checkout and order routes
	// when non-empty; otherwise identity comes from the X-User-ID header set
	// by an upstream gateway.
	JWTSecret    string
	WebhookRPS   int
	WebhookBurst int
}

// NewRouter creates a chi router with all checkout engine routes registered.
func NewRouter(
	checkoutService *service.CheckoutService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	checkoutHandler := NewCheckoutHandler(checkoutService, logger)
	webhookHandler := NewWebhookHandler(checkoutService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Group(func(r chi.Router) {
			if cfg.JWTSecret != "" {
				r.Use(middleware.Auth(middleware.JWTValidator(cfg.JWTSecret)))
			}

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/quote", checkoutHandler.Quote)
				r.Post("/intent", checkoutHandler.CreateIntent)
				r.Post("/complete", checkoutHandler.Complete)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", checkoutHandler.ListOrders)
				r.Get("/{id}", checkoutHandler.GetOrder)
			})
		})

		// The webhook is the only unauthenticated write surface; it gets a
		// per-IP rate limit on top of signature verification.
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.WebhookRPS, cfg.WebhookBurst, logger))
			r.Post("/payment", webhookHandler.PaymentCallback)
		})
	})

	return r
}
