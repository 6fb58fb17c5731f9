package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/pricing"
	"github.com/utafrali/checkout-engine/internal/provider"
	"github.com/utafrali/checkout-engine/internal/repository"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// CheckoutConfig holds checkout flow tuning.
type CheckoutConfig struct {
	SessionTTL     time.Duration
	ReservationTTL time.Duration
	Currency       string
}

// DefaultCheckoutConfig returns sensible checkout defaults.
func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		SessionTTL:     30 * time.Minute,
		ReservationTTL: 15 * time.Minute,
		Currency:       "USD",
	}
}

// CheckoutService orchestrates the quote, intent, and completion stages of a
// checkout. The cart travels as an explicit session value between stages;
// the applied coupon is re-validated on every cart change instead of being
// trusted from client state.
type CheckoutService struct {
	sessions  repository.SessionRepository
	coupons   repository.CouponRepository
	orders    repository.OrderRepository
	stock     *StockGuard
	payments  *PaymentService
	finalizer *OrderFinalizer
	fanout    *NotificationFanout
	shipping  *ShippingResolver
	logger    *slog.Logger
	cfg       CheckoutConfig
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	sessions repository.SessionRepository,
	coupons repository.CouponRepository,
	orders repository.OrderRepository,
	stock *StockGuard,
	payments *PaymentService,
	finalizer *OrderFinalizer,
	fanout *NotificationFanout,
	shipping *ShippingResolver,
	logger *slog.Logger,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		sessions:  sessions,
		coupons:   coupons,
		orders:    orders,
		stock:     stock,
		payments:  payments,
		finalizer: finalizer,
		fanout:    fanout,
		shipping:  shipping,
		logger:    logger,
		cfg:       cfg,
	}
}

// QuoteInput holds the parameters for a pricing quote.
type QuoteInput struct {
	SessionID      string
	UserID         string
	Lines          []domain.CartLineItem
	CouponCode     string
	ShippingOption string
}

// QuoteOutput is the quote result. CouponDetached reports that a previously
// applied coupon stopped qualifying after a cart change and was dropped.
type QuoteOutput struct {
	SessionID      string               `json:"session_id"`
	Pricing        domain.PricingResult `json:"pricing"`
	CouponDetached bool                 `json:"coupon_detached,omitempty"`
}

// Quote prices the cart, validating any coupon against the live subtotal.
// On a fresh coupon application validation failures surface to the caller;
// on a cart edit an applied coupon that fell below its minimum detaches
// silently and pricing is recomputed without it.
func (s *CheckoutService) Quote(ctx context.Context, input *QuoteInput) (*QuoteOutput, error) {
	if len(input.Lines) == 0 {
		return nil, apperrors.InvalidInput("cart must contain at least one line")
	}

	session, fresh, err := s.loadOrCreateSession(ctx, input)
	if err != nil {
		return nil, err
	}

	shippingCost, err := s.shipping.Resolve(ctx, input.ShippingOption, input.Lines)
	if err != nil {
		return nil, err
	}

	var coupon *domain.Coupon
	if input.CouponCode != "" {
		coupon, err = s.coupons.GetByCode(ctx, input.CouponCode)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	var result domain.PricingResult
	var detached bool

	newApplication := input.CouponCode != "" && input.CouponCode != session.CouponCode
	if newApplication {
		// First application: validation failures are the caller's problem.
		result, err = pricing.Compute(input.Lines, nil, shippingCost)
		if err != nil {
			return nil, err
		}
		if err := pricing.ValidateCoupon(*coupon, result.Subtotal, now); err != nil {
			return nil, err
		}
		result, err = pricing.Compute(input.Lines, coupon, shippingCost)
		if err != nil {
			return nil, err
		}
	} else {
		result, detached, err = pricing.Requote(input.Lines, coupon, shippingCost, now)
		if err != nil {
			return nil, err
		}
	}

	session.Lines = input.Lines
	session.CouponCode = input.CouponCode
	if detached {
		session.DetachCoupon()
	}
	session.ShippingOption = input.ShippingOption
	session.ShippingCost = shippingCost
	session.Status = domain.SessionQuoted
	session.UpdatedAt = now

	if err := s.sessions.Save(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("save checkout session: %w", err)
	}

	if fresh {
		s.logger.InfoContext(ctx, "checkout session opened",
			slog.String("session_id", session.ID),
			slog.String("user_id", session.UserID),
		)
	}

	return &QuoteOutput{
		SessionID:      session.ID,
		Pricing:        result,
		CouponDetached: detached,
	}, nil
}

// IntentInput holds the parameters for creating a payment intent.
type IntentInput struct {
	SessionID     string
	UserID        string
	PaymentMethod string
}

// IntentOutput is the payment handle returned to the client.
type IntentOutput struct {
	IntentID string          `json:"intent_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// CreateIntent re-prices the session, dry-checks stock, places the TTL
// reservation, and registers the payment attempt. An out-of-stock cart
// returns the offending lines with 409 semantics so the client can prune
// exactly those and resubmit.
func (s *CheckoutService) CreateIntent(ctx context.Context, input *IntentInput) (*IntentOutput, error) {
	session, err := s.sessions.Get(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != input.UserID {
		return nil, apperrors.Unauthorized("session belongs to another user")
	}
	if len(session.Lines) == 0 {
		return nil, apperrors.InvalidInput("session has no cart lines")
	}

	result, _, err := s.priceSession(ctx, session)
	if err != nil {
		return nil, err
	}

	if err := s.stock.Reserve(ctx, session.ID, session.Lines, s.cfg.ReservationTTL); err != nil {
		return nil, err
	}

	var intent *domain.PaymentIntent
	if input.PaymentMethod == "cash" {
		intent, err = s.payments.CashIntent(ctx, session.ID, session.UserID, result.GrandTotal, s.cfg.Currency)
	} else {
		intent, err = s.payments.CreateIntent(ctx, input.PaymentMethod, session.ID, session.UserID, result.GrandTotal, s.cfg.Currency)
	}
	if err != nil {
		// The attempt is dead; free the holds instead of waiting for TTL.
		if relErr := s.stock.Release(ctx, session.ID); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release holds after intent error",
				slog.String("session_id", session.ID),
				slog.String("error", relErr.Error()),
			)
		}
		return nil, err
	}

	session.PaymentMethod = intent.Provider
	session.PaymentIntentID = intent.ID
	session.Status = domain.SessionPending
	session.UpdatedAt = time.Now().UTC()
	if err := s.sessions.Save(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("save checkout session: %w", err)
	}

	return &IntentOutput{
		IntentID: intent.ID,
		Amount:   intent.Amount,
		Currency: intent.Currency,
	}, nil
}

// HandleCallback processes a signed gateway notification. It runs the same
// idempotent verify/finalize path as a client-driven completion, so webhook
// replays and races with client polls all converge on one order.
func (s *CheckoutService) HandleCallback(ctx context.Context, payload *provider.CallbackPayload) (*domain.Order, error) {
	intent, err := s.payments.Verify(ctx, payload)
	if err != nil {
		if intent != nil && errors.Is(err, apperrors.ErrPaymentFailed) {
			// Declined: free the holds instead of waiting for the TTL.
			if relErr := s.stock.Release(ctx, intent.SessionID); relErr != nil {
				s.logger.ErrorContext(ctx, "failed to release holds after declined payment",
					slog.String("session_id", intent.SessionID),
					slog.String("error", relErr.Error()),
				)
			}
		}
		return nil, err
	}
	if intent.Status != domain.IntentCaptured && intent.Status != domain.IntentAuthorized {
		// Failed or expired: drop the holds, nothing to finalize.
		if relErr := s.stock.Release(ctx, intent.SessionID); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release holds after failed payment",
				slog.String("session_id", intent.SessionID),
				slog.String("error", relErr.Error()),
			)
		}
		return nil, nil
	}
	return s.settle(ctx, intent)
}

// Complete finishes a checkout from the client side: for gateway payments
// the intent must already be captured by a verified callback; for cash the
// intent authorizes on creation. Safe to retry after a network timeout.
func (s *CheckoutService) Complete(ctx context.Context, intentID string) (*domain.Order, error) {
	intent, err := s.payments.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	switch intent.Status {
	case domain.IntentCaptured, domain.IntentAuthorized:
		return s.settle(ctx, intent)
	case domain.IntentCreated:
		return nil, apperrors.PaymentFailed("payment has not completed yet")
	default:
		return nil, apperrors.PaymentFailed(fmt.Sprintf("payment intent is %s", intent.Status))
	}
}

// settle converts a settled payment into an order: commit stock, persist the
// order, fan out side effects. Idempotent re-entry is handled up front by
// the existing-order lookup; a caller that slips past it and loses the
// insert race compensates its own stock commit, so one order never costs
// two decrements.
func (s *CheckoutService) settle(ctx context.Context, intent *domain.PaymentIntent) (*domain.Order, error) {
	if existing, err := s.orders.GetByPaymentIntentID(ctx, intent.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	session, err := s.sessions.Get(ctx, intent.SessionID)
	if err != nil {
		return nil, err
	}

	result, _, err := s.priceSession(ctx, session)
	if err != nil {
		return nil, err
	}

	orderStatus := domain.OrderPending
	stockCommitted := true
	if err := s.stock.Commit(ctx, session.ID, session.Lines); err != nil {
		stockCommitted = false
		if !errors.Is(err, apperrors.ErrStockConflict) {
			return nil, err
		}
		if intent.Status == domain.IntentAuthorized && intent.Provider != "cash" {
			// Money not captured yet: reverse the authorization and
			// surface the conflict for cart repair.
			if voidErr := s.payments.Void(ctx, intent); voidErr != nil {
				s.logger.ErrorContext(ctx, "failed to void intent after stock conflict",
					slog.String("intent_id", intent.ID),
					slog.String("error", voidErr.Error()),
				)
			}
			return nil, err
		}
		// Money already captured (or cash promised): record the order
		// anyway so the refund is trackable instead of silently dropping
		// the payment.
		orderStatus = domain.OrderRefundPending
		if intent.Provider == "cash" {
			orderStatus = domain.OrderCancelled
		}
		s.logger.WarnContext(ctx, "stock conflict after capture, order flagged",
			slog.String("intent_id", intent.ID),
			slog.String("order_status", string(orderStatus)),
		)
	}

	order, created, err := s.finalizer.Finalize(ctx, session, result, intent, orderStatus)
	if err != nil {
		// The insert did not land; undo this call's decrement so an
		// end-to-end retry starts from a clean slate.
		if stockCommitted {
			s.stock.Reverse(ctx, session.ID, session.Lines)
		}
		return nil, err
	}
	if !created {
		// A concurrent settlement for the same intent won the insert and
		// its stock commit stands; this caller's must be compensated.
		if stockCommitted {
			s.stock.Reverse(ctx, session.ID, session.Lines)
		}
		return order, nil
	}

	if order.Status == domain.OrderPending {
		s.fanout.Enqueue(ctx, order)
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete completed session",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	return order, nil
}

// GetOrder loads an order by ID.
func (s *CheckoutService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListOrders returns a page of the user's orders.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

// priceSession recomputes the deterministic price breakdown from the stored
// session snapshot, re-validating the coupon.
func (s *CheckoutService) priceSession(ctx context.Context, session *domain.CheckoutSession) (domain.PricingResult, bool, error) {
	var coupon *domain.Coupon
	if session.CouponCode != "" {
		c, err := s.coupons.GetByCode(ctx, session.CouponCode)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				session.DetachCoupon()
			} else {
				return domain.PricingResult{}, false, err
			}
		} else {
			coupon = c
		}
	}

	result, detached, err := pricing.Requote(session.Lines, coupon, session.ShippingCost, time.Now().UTC())
	if err != nil {
		return domain.PricingResult{}, false, err
	}
	if detached {
		session.DetachCoupon()
	}
	return result, detached, nil
}

func (s *CheckoutService) loadOrCreateSession(ctx context.Context, input *QuoteInput) (*domain.CheckoutSession, bool, error) {
	if input.SessionID != "" {
		session, err := s.sessions.Get(ctx, input.SessionID)
		if err != nil {
			return nil, false, err
		}
		if session.UserID != input.UserID {
			return nil, false, apperrors.Unauthorized("session belongs to another user")
		}
		return session, false, nil
	}

	now := time.Now().UTC()
	return &domain.CheckoutSession{
		ID:        uuid.New().String(),
		UserID:    input.UserID,
		Status:    domain.SessionOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}, true, nil
}
