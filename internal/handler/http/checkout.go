package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/service"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
	"github.com/utafrali/checkout-engine/pkg/httputil"
	"github.com/utafrali/checkout-engine/pkg/middleware"
	"github.com/utafrali/checkout-engine/pkg/validator"
)

// CheckoutHandler handles HTTP requests for the checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CartLineRequest is a single cart line in a quote or intent request.
type CartLineRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	TaxMode   string          `json:"tax_mode" validate:"omitempty,oneof=inclusive exclusive"`
}

// QuoteRequest is the JSON request body for pricing a cart.
type QuoteRequest struct {
	SessionID      string            `json:"session_id"`
	Lines          []CartLineRequest `json:"lines" validate:"required,min=1,dive"`
	CouponCode     string            `json:"coupon_code"`
	ShippingOption string            `json:"shipping_option"`
}

// IntentRequest is the JSON request body for creating a payment intent.
type IntentRequest struct {
	SessionID     string `json:"session_id" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// CompleteRequest is the JSON request body for completing a checkout.
type CompleteRequest struct {
	IntentID string `json:"intent_id" validate:"required"`
}

// callerID resolves the caller identity: the bearer token claim when JWT
// auth is enabled, else the X-User-ID header set by an upstream gateway.
func callerID(r *http.Request) string {
	if id := middleware.UserIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-User-ID")
}

func toDomainLines(lines []CartLineRequest) []domain.CartLineItem {
	out := make([]domain.CartLineItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.CartLineItem{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			TaxRate:   l.TaxRate,
			TaxMode:   domain.TaxMode(l.TaxMode),
		})
	}
	return out
}

// Quote handles POST /api/v1/checkout/quote.
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("caller identity is required"), h.logger)
		return
	}

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteValidationError(w, apperrors.InvalidInput("invalid JSON body"))
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	out, err := h.service.Quote(r.Context(), &service.QuoteInput{
		SessionID:      req.SessionID,
		UserID:         userID,
		Lines:          toDomainLines(req.Lines),
		CouponCode:     req.CouponCode,
		ShippingOption: req.ShippingOption,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// CreateIntent handles POST /api/v1/checkout/intent.
func (h *CheckoutHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("caller identity is required"), h.logger)
		return
	}

	var req IntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteValidationError(w, apperrors.InvalidInput("invalid JSON body"))
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	out, err := h.service.CreateIntent(r.Context(), &service.IntentInput{
		SessionID:     req.SessionID,
		UserID:        userID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: out})
}

// Complete handles POST /api/v1/checkout/complete.
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteValidationError(w, apperrors.InvalidInput("invalid JSON body"))
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.Complete(r.Context(), req.IntentID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// GetOrder handles GET /api/v1/orders/{id}.
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// ListOrders handles GET /api/v1/orders.
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("caller identity is required"), h.logger)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, total, err := h.service.ListOrders(r.Context(), userID, limit, offset)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"orders": orders,
		"total":  total,
	}})
}
