package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/event"
	pkgkafka "github.com/utafrali/checkout-engine/pkg/kafka"
)

// --- Shared test doubles for the repository interfaces ---

type mockStockRepository struct {
	mock.Mock
}

func (m *mockStockRepository) GetAvailable(ctx context.Context, productID, variantID string) (int, error) {
	args := m.Called(ctx, productID, variantID)
	return args.Int(0), args.Error(1)
}

func (m *mockStockRepository) DecrementOnHand(ctx context.Context, productID, variantID string, qty int) (bool, error) {
	args := m.Called(ctx, productID, variantID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *mockStockRepository) IncrementOnHand(ctx context.Context, productID, variantID string, qty int) error {
	args := m.Called(ctx, productID, variantID, qty)
	return args.Error(0)
}

type mockReservationRepository struct {
	mock.Mock
}

func (m *mockReservationRepository) CreateReservations(ctx context.Context, reservations []domain.StockReservation) error {
	args := m.Called(ctx, reservations)
	return args.Error(0)
}

func (m *mockReservationRepository) ReleaseBySession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *mockReservationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockIntentRepository struct {
	mock.Mock
}

func (m *mockIntentRepository) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *mockIntentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

func (m *mockIntentRepository) TransitionStatus(ctx context.Context, id string, from, to domain.IntentStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockIntentRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) CreateIdempotent(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Order), args.Bool(1), args.Error(2)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type mockCouponRepository struct {
	mock.Mock
}

func (m *mockCouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

type mockTaskRepository struct {
	mock.Mock
}

func (m *mockTaskRepository) Create(ctx context.Context, task *domain.SideEffectTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepository) Update(ctx context.Context, task *domain.SideEffectTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepository) ListQueued(ctx context.Context, limit int) ([]*domain.SideEffectTask, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SideEffectTask), args.Error(1)
}

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Save(ctx context.Context, session *domain.CheckoutSession, ttl time.Duration) error {
	args := m.Called(ctx, session, ttl)
	return args.Error(0)
}

func (m *mockSessionRepository) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockSessionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// stubPublisher swallows events so tests never dial a broker.
type stubPublisher struct{}

func (stubPublisher) Publish(_ context.Context, _ string, _ *pkgkafka.Event) error {
	return nil
}

// --- Test helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEventProducer() *event.Producer {
	return event.NewProducer(stubPublisher{})
}
