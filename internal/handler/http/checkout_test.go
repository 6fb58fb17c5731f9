package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/event"
	"github.com/utafrali/checkout-engine/internal/provider"
	providermock "github.com/utafrali/checkout-engine/internal/provider/mock"
	"github.com/utafrali/checkout-engine/internal/sender"
	sendermock "github.com/utafrali/checkout-engine/internal/sender/mock"
	"github.com/utafrali/checkout-engine/internal/service"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
	pkgkafka "github.com/utafrali/checkout-engine/pkg/kafka"
)

const testWebhookSecret = "handler-test-secret"

// ============================================================================
// Mock repositories
// ============================================================================

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

func (m *mockStockRepository) CreateReservations(ctx context.Context, reservations []domain.StockReservation) error {
	args := m.Called(ctx, reservations)
	return args.Error(0)
}

func (m *mockStockRepository) ReleaseBySession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *mockStockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
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

type stubPublisher struct{}

func (stubPublisher) Publish(_ context.Context, _ string, _ *pkgkafka.Event) error {
	return nil
}

// ============================================================================
// Test helpers
// ============================================================================

type handlerFixture struct {
	sessions *mockSessionRepository
	coupons  *mockCouponRepository
	orders   *mockOrderRepository
	stock    *mockStockRepository
	intents  *mockIntentRepository
	tasks    *mockTaskRepository
	gateway  *providermock.Gateway
	router   http.Handler
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newHandlerFixture() *handlerFixture {
	logger := testLogger()
	producer := event.NewProducer(stubPublisher{})

	f := &handlerFixture{
		sessions: new(mockSessionRepository),
		coupons:  new(mockCouponRepository),
		orders:   new(mockOrderRepository),
		stock:    new(mockStockRepository),
		intents:  new(mockIntentRepository),
		tasks:    new(mockTaskRepository),
		gateway:  providermock.NewGateway(testWebhookSecret),
	}

	gateways := map[string]provider.Gateway{
		"mock": f.gateway,
		"cash": provider.NewCashGateway(),
	}
	guard := service.NewStockGuard(f.stock, f.stock, logger)
	payments := service.NewPaymentService(f.intents, gateways, producer, logger)
	finalizer := service.NewOrderFinalizer(f.orders, producer, logger)
	fanout := service.NewNotificationFanout(
		f.tasks,
		map[domain.TaskType]sender.Sender{
			domain.TaskEmail: sendermock.NewSender("email", logger),
		},
		producer,
		logger,
		service.DefaultFanoutConfig(),
	)
	shipping := service.NewShippingResolver(nil, "")

	svc := service.NewCheckoutService(
		f.sessions, f.coupons, f.orders,
		guard, payments, finalizer, fanout, shipping,
		logger, service.DefaultCheckoutConfig(),
	)

	checkoutHandler := NewCheckoutHandler(svc, logger)
	webhookHandler := NewWebhookHandler(svc, logger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/quote", checkoutHandler.Quote)
			r.Post("/intent", checkoutHandler.CreateIntent)
			r.Post("/complete", checkoutHandler.Complete)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", checkoutHandler.ListOrders)
			r.Get("/{id}", checkoutHandler.GetOrder)
		})
		r.Post("/webhooks/payment", webhookHandler.PaymentCallback)
	})
	f.router = r
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func quoteBody() map[string]any {
	return map[string]any{
		"lines": []map[string]any{
			{
				"product_id": "prod-1",
				"name":       "Walnut Desk",
				"quantity":   2,
				"unit_price": "500",
			},
		},
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestQuoteEndpoint_RequiresUserHeader(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/checkout/quote", "", quoteBody())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQuoteEndpoint_ReturnsPricing(t *testing.T) {
	f := newHandlerFixture()

	f.sessions.On("Save", mock.Anything, mock.AnythingOfType("*domain.CheckoutSession"), mock.AnythingOfType("time.Duration")).Return(nil)

	rec := f.do(t, http.MethodPost, "/api/v1/checkout/quote", "user-1", quoteBody())

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			SessionID string `json:"session_id"`
			Pricing   struct {
				GrandTotal decimal.Decimal `json:"grand_total"`
			} `json:"pricing"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.SessionID)
	assert.True(t, resp.Data.Pricing.GrandTotal.Equal(decimal.NewFromInt(1000)))
}

func TestQuoteEndpoint_ValidatesBody(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/checkout/quote", "user-1", map[string]any{
		"lines": []map[string]any{},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntentEndpoint_OutOfStockCarriesItems(t *testing.T) {
	f := newHandlerFixture()

	session := &domain.CheckoutSession{
		ID:     "sess-1",
		UserID: "user-1",
		Lines: []domain.CartLineItem{
			{ProductID: "prod-1", Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
		},
		Status: domain.SessionQuoted,
	}
	f.sessions.On("Get", mock.Anything, "sess-1").Return(session, nil)
	f.stock.On("GetAvailable", mock.Anything, "prod-1", "").Return(1, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/checkout/intent", "user-1", map[string]any{
		"session_id":     "sess-1",
		"payment_method": "mock",
	})

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Error struct {
			Code            string                     `json:"code"`
			OutOfStockItems []apperrors.OutOfStockItem `json:"out_of_stock_items"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OUT_OF_STOCK", resp.Error.Code)
	require.Len(t, resp.Error.OutOfStockItems, 1)
	assert.Equal(t, "prod-1", resp.Error.OutOfStockItems[0].ProductID)
	assert.Equal(t, 1, resp.Error.OutOfStockItems[0].Available)
}

func TestIntentEndpoint_CreatesIntent(t *testing.T) {
	f := newHandlerFixture()

	session := &domain.CheckoutSession{
		ID:     "sess-1",
		UserID: "user-1",
		Lines: []domain.CartLineItem{
			{ProductID: "prod-1", Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
		},
		Status: domain.SessionQuoted,
	}
	f.sessions.On("Get", mock.Anything, "sess-1").Return(session, nil)
	f.stock.On("GetAvailable", mock.Anything, "prod-1", "").Return(10, nil)
	f.stock.On("CreateReservations", mock.Anything, mock.AnythingOfType("[]domain.StockReservation")).Return(nil)
	f.intents.On("Create", mock.Anything, mock.AnythingOfType("*domain.PaymentIntent")).Return(nil)
	f.sessions.On("Save", mock.Anything, mock.AnythingOfType("*domain.CheckoutSession"), mock.AnythingOfType("time.Duration")).Return(nil)

	rec := f.do(t, http.MethodPost, "/api/v1/checkout/intent", "user-1", map[string]any{
		"session_id":     "sess-1",
		"payment_method": "mock",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data struct {
			IntentID string          `json:"intent_id"`
			Amount   decimal.Decimal `json:"amount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.IntentID)
	assert.True(t, resp.Data.Amount.Equal(decimal.NewFromInt(1000)))
}

func TestGetOrderEndpoint_NotFound(t *testing.T) {
	f := newHandlerFixture()

	f.orders.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("order", "missing"))

	rec := f.do(t, http.MethodGet, "/api/v1/orders/missing", "user-1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersEndpoint_ReturnsPage(t *testing.T) {
	f := newHandlerFixture()

	orders := []*domain.Order{
		{ID: "order-1", UserID: "user-1", Status: domain.OrderPending},
	}
	f.orders.On("ListByUser", mock.Anything, "user-1", 20, 0).Return(orders, 1, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/orders/", "user-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Orders []json.RawMessage `json:"orders"`
			Total  int               `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Total)
	assert.Len(t, resp.Data.Orders, 1)
}
