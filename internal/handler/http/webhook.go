package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/checkout-engine/internal/provider"
	"github.com/utafrali/checkout-engine/internal/service"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
	"github.com/utafrali/checkout-engine/pkg/httputil"
)

// WebhookHandler receives signed payment gateway notifications.
type WebhookHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(svc *service.CheckoutService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: svc,
		logger:  logger,
	}
}

// PaymentCallback handles POST /api/v1/webhooks/payment. Replays of an
// already-processed callback get the same 2xx as the first delivery, so the
// gateway stops retrying. A bad signature is the one thing that never gets a
// 2xx.
func (h *WebhookHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var payload provider.CallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid callback body"), h.logger)
		return
	}
	if payload.IntentID == "" || payload.Signature == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("intent_id and signature are required"), h.logger)
		return
	}

	order, err := h.service.HandleCallback(r.Context(), &payload)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrSignatureMismatch):
			h.logger.WarnContext(r.Context(), "webhook signature rejected",
				slog.String("intent_id", payload.IntentID),
				slog.String("remote_addr", r.RemoteAddr),
			)
			httputil.WriteError(w, r, err, h.logger)
			return
		case errors.Is(err, apperrors.ErrPaymentFailed):
			// The gateway told us the payment failed; acknowledged.
			httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{
				"status": "acknowledged",
			}})
			return
		default:
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	resp := map[string]string{"status": "processed"}
	if order != nil {
		resp["order_id"] = order.ID
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}
