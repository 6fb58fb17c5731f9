package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/event"
	"github.com/utafrali/checkout-engine/internal/repository"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// OrderFinalizer is the single write transaction boundary that turns a
// verified payment plus a committed stock decrement into exactly one Order.
// The payment intent ID is the idempotency key; re-entry with the same
// intent returns the original order untouched.
type OrderFinalizer struct {
	orders   repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderFinalizer creates a new order finalizer.
func NewOrderFinalizer(orders repository.OrderRepository, producer *event.Producer, logger *slog.Logger) *OrderFinalizer {
	return &OrderFinalizer{
		orders:   orders,
		producer: producer,
		logger:   logger,
	}
}

// Finalize persists the order for a settled payment. Preconditions: the
// intent is authorized or captured (or cash), and the stock commit has
// already succeeded. Safe to retry end to end; duplicate webhook delivery
// and client retries converge on the same row. The second return reports
// whether this call created the row, so a caller that lost the race can
// compensate work it did on the assumption it would win.
func (f *OrderFinalizer) Finalize(ctx context.Context, session *domain.CheckoutSession, pricing domain.PricingResult, intent *domain.PaymentIntent, status domain.OrderStatus) (*domain.Order, bool, error) {
	if intent.Status != domain.IntentAuthorized && intent.Status != domain.IntentCaptured {
		return nil, false, apperrors.PaymentFailed(fmt.Sprintf("cannot finalize with intent in status %s", intent.Status))
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.New().String(),
		UserID:          session.UserID,
		Lines:           session.Lines,
		Pricing:         pricing,
		PaymentMethod:   intent.Provider,
		PaymentIntentID: intent.ID,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	stored, created, err := f.orders.CreateIdempotent(ctx, order)
	if err != nil {
		return nil, false, fmt.Errorf("finalize order: %w", err)
	}

	if !created {
		f.logger.InfoContext(ctx, "order finalize replayed, returning existing",
			slog.String("order_id", stored.ID),
			slog.String("payment_intent_id", intent.ID),
		)
		return stored, false, nil
	}

	f.logger.InfoContext(ctx, "order created",
		slog.String("order_id", stored.ID),
		slog.String("invoice_number", stored.InvoiceNumber),
		slog.String("payment_intent_id", intent.ID),
		slog.String("grand_total", pricing.GrandTotal.String()),
	)

	// The order exists; event delivery is best effort.
	if err := f.producer.OrderCreated(ctx, stored); err != nil {
		f.logger.ErrorContext(ctx, "failed to publish order event",
			slog.String("order_id", stored.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := f.producer.CheckoutCompleted(ctx, session.ID, stored); err != nil {
		f.logger.ErrorContext(ctx, "failed to publish checkout event",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	return stored, true, nil
}
