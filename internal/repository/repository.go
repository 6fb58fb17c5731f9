package repository

import (
	"context"
	"time"

	"github.com/utafrali/checkout-engine/internal/domain"
)

// StockRepository exposes the inventory primitives used by the stock guard.
// All mutation goes through the conditional decrement; nothing else in the
// system may write on_hand directly.
type StockRepository interface {
	// GetAvailable returns on-hand quantity minus unexpired reservations.
	GetAvailable(ctx context.Context, productID, variantID string) (int, error)

	// DecrementOnHand conditionally subtracts qty, failing (false, nil) when
	// fewer than qty units remain.
	DecrementOnHand(ctx context.Context, productID, variantID string, qty int) (bool, error)

	// IncrementOnHand adds qty back, compensating a partial commit.
	IncrementOnHand(ctx context.Context, productID, variantID string, qty int) error
}

// ReservationRepository manages the soft holds bridging check and commit.
type ReservationRepository interface {
	CreateReservations(ctx context.Context, reservations []domain.StockReservation) error
	ReleaseBySession(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// IntentRepository persists payment intents and their state machine.
type IntentRepository interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error)

	// TransitionStatus moves the intent from one status to another with a
	// conditional update, returning false when the intent was not in the
	// expected source status.
	TransitionStatus(ctx context.Context, id string, from, to domain.IntentStatus) (bool, error)

	// ExpireStale marks created intents older than cutoff as expired and
	// returns their session IDs so reservations can be released.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

// OrderRepository persists finalized orders.
type OrderRepository interface {
	// CreateIdempotent inserts the order unless one already exists for the
	// same payment intent; it returns the stored order either way, with
	// created=false on the duplicate path.
	CreateIdempotent(ctx context.Context, order *domain.Order) (*domain.Order, bool, error)

	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

// CouponRepository reads discount reference data.
type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

// TaskRepository persists side-effect tasks for dispatch and monitoring.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.SideEffectTask) error
	Update(ctx context.Context, task *domain.SideEffectTask) error
	ListQueued(ctx context.Context, limit int) ([]*domain.SideEffectTask, error)
}

// SessionRepository stores checkout sessions with a TTL.
type SessionRepository interface {
	Save(ctx context.Context, session *domain.CheckoutSession, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.CheckoutSession, error)
	Delete(ctx context.Context, id string) error
}
