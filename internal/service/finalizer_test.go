package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkout-engine/internal/domain"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

func finalizerFixtures() (*domain.CheckoutSession, domain.PricingResult, *domain.PaymentIntent) {
	session := &domain.CheckoutSession{
		ID:     "sess-1",
		UserID: "user-1",
		Lines: []domain.CartLineItem{
			{ProductID: "prod-1", Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
		},
	}
	pricing := domain.PricingResult{
		Subtotal:   decimal.NewFromInt(1000),
		GrandTotal: decimal.NewFromInt(1000),
	}
	intent := &domain.PaymentIntent{
		ID:       "pi-1",
		Provider: "mock",
		Amount:   decimal.NewFromInt(1000),
		Currency: "USD",
		Status:   domain.IntentCaptured,
	}
	return session, pricing, intent
}

func TestFinalize_CreatesOrder(t *testing.T) {
	orders := new(mockOrderRepository)
	finalizer := NewOrderFinalizer(orders, newTestEventProducer(), newTestLogger())
	ctx := context.Background()
	session, pricing, intent := finalizerFixtures()

	orders.On("CreateIdempotent", ctx, mock.MatchedBy(func(o *domain.Order) bool {
		return o.PaymentIntentID == "pi-1" &&
			o.UserID == "user-1" &&
			o.Status == domain.OrderPending &&
			len(o.Lines) == 1
	})).Return(&domain.Order{
		ID:              "order-1",
		InvoiceNumber:   "INV-2026-000042",
		PaymentIntentID: "pi-1",
		Status:          domain.OrderPending,
	}, true, nil)

	order, created, err := finalizer.Finalize(ctx, session, pricing, intent, domain.OrderPending)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, "INV-2026-000042", order.InvoiceNumber)
	orders.AssertExpectations(t)
}

func TestFinalize_ReplayReturnsExistingOrder(t *testing.T) {
	orders := new(mockOrderRepository)
	finalizer := NewOrderFinalizer(orders, newTestEventProducer(), newTestLogger())
	ctx := context.Background()
	session, pricing, intent := finalizerFixtures()

	existing := &domain.Order{ID: "order-1", PaymentIntentID: "pi-1", Status: domain.OrderPending}
	orders.On("CreateIdempotent", ctx, mock.AnythingOfType("*domain.Order")).Return(existing, false, nil)

	first, created, err := finalizer.Finalize(ctx, session, pricing, intent, domain.OrderPending)
	require.NoError(t, err)
	assert.False(t, created)
	second, created, err := finalizer.Finalize(ctx, session, pricing, intent, domain.OrderPending)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, first.ID, second.ID)
}

func TestFinalize_RejectsUnsettledIntent(t *testing.T) {
	orders := new(mockOrderRepository)
	finalizer := NewOrderFinalizer(orders, newTestEventProducer(), newTestLogger())
	session, pricing, intent := finalizerFixtures()
	intent.Status = domain.IntentCreated

	_, _, err := finalizer.Finalize(context.Background(), session, pricing, intent, domain.OrderPending)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	orders.AssertNotCalled(t, "CreateIdempotent", mock.Anything, mock.Anything)
}
