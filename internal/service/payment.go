package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/event"
	"github.com/utafrali/checkout-engine/internal/provider"
	"github.com/utafrali/checkout-engine/internal/repository"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// PaymentService drives the intent state machine across the gateway
// providers. Verification is idempotent: a replayed callback for an intent
// that already captured returns the stored result instead of re-processing.
type PaymentService struct {
	intents  repository.IntentRepository
	gateways map[string]provider.Gateway
	producer *event.Producer
	logger   *slog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	intents repository.IntentRepository,
	gateways map[string]provider.Gateway,
	producer *event.Producer,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		intents:  intents,
		gateways: gateways,
		producer: producer,
		logger:   logger,
	}
}

func (s *PaymentService) gateway(name string) (provider.Gateway, error) {
	gw, ok := s.gateways[name]
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown payment method %q", name))
	}
	return gw, nil
}

// CreateIntent registers a payment attempt with the named gateway and
// persists it in the created state.
func (s *PaymentService) CreateIntent(ctx context.Context, method, sessionID, userID string, amount decimal.Decimal, currency string) (*domain.PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, apperrors.InvalidInput("payment amount must be positive")
	}

	gw, err := s.gateway(method)
	if err != nil {
		return nil, err
	}

	result, err := gw.CreateIntent(ctx, &provider.IntentInput{
		Amount:   amount,
		Currency: currency,
		OrderRef: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("create intent at gateway %s: %w", method, err)
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:        result.ProviderIntentID,
		Provider:  method,
		SessionID: sessionID,
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Status:    domain.IntentCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("persist payment intent: %w", err)
	}

	s.logger.InfoContext(ctx, "payment intent created",
		slog.String("intent_id", intent.ID),
		slog.String("provider", method),
		slog.String("amount", amount.String()),
	)
	return intent, nil
}

// CashIntent creates a degenerate pay-on-delivery intent that is authorized
// immediately with no external call.
func (s *PaymentService) CashIntent(ctx context.Context, sessionID, userID string, amount decimal.Decimal, currency string) (*domain.PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, apperrors.InvalidInput("payment amount must be positive")
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:        "cash_" + uuid.New().String(),
		Provider:  "cash",
		SessionID: sessionID,
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Status:    domain.IntentAuthorized,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("persist cash intent: %w", err)
	}

	s.logger.InfoContext(ctx, "cash intent authorized",
		slog.String("intent_id", intent.ID),
		slog.String("amount", amount.String()),
	)
	return intent, nil
}

// Verify validates a gateway callback against the stored intent: signature
// first, then amount, then the state machine. It may be called from both the
// client callback and the server-to-server webhook; whichever arrives second
// for a captured intent gets the cached outcome.
func (s *PaymentService) Verify(ctx context.Context, payload *provider.CallbackPayload) (*domain.PaymentIntent, error) {
	intent, err := s.intents.GetByID(ctx, payload.IntentID)
	if err != nil {
		return nil, err
	}

	gw, err := s.gateway(intent.Provider)
	if err != nil {
		return nil, err
	}
	if err := gw.VerifySignature(payload); err != nil {
		s.logger.WarnContext(ctx, "callback signature rejected",
			slog.String("intent_id", payload.IntentID),
			slog.String("provider", intent.Provider),
		)
		return nil, err
	}

	if !payload.Amount.Equal(intent.Amount) {
		return nil, apperrors.AmountMismatch(payload.Amount.String(), intent.Amount.String())
	}

	// Idempotent replay: already settled.
	if intent.Status == domain.IntentCaptured {
		return intent, nil
	}
	if intent.Status.Terminal() {
		return nil, apperrors.PaymentFailed(fmt.Sprintf("intent %s already %s", intent.ID, intent.Status))
	}

	switch payload.Status {
	case "authorized":
		if err := s.transition(ctx, intent, domain.IntentAuthorized); err != nil {
			return nil, err
		}
	case "captured":
		if err := s.transition(ctx, intent, domain.IntentCaptured); err != nil {
			return nil, err
		}
		if err := s.producer.PaymentCaptured(ctx, intent); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment event",
				slog.String("intent_id", intent.ID),
				slog.String("error", err.Error()),
			)
		}
	case "failed":
		if err := s.transition(ctx, intent, domain.IntentFailed); err != nil {
			return nil, err
		}
		if err := s.producer.PaymentFailed(ctx, intent); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment event",
				slog.String("intent_id", intent.ID),
				slog.String("error", err.Error()),
			)
		}
		return intent, apperrors.PaymentFailed("payment was declined by the gateway")
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown callback status %q", payload.Status))
	}

	return intent, nil
}

// Void reverses an authorized-but-not-captured intent, used when the stock
// commit fails after authorization.
func (s *PaymentService) Void(ctx context.Context, intent *domain.PaymentIntent) error {
	gw, err := s.gateway(intent.Provider)
	if err != nil {
		return err
	}
	if err := gw.Void(ctx, intent.ID); err != nil {
		return fmt.Errorf("void intent %s: %w", intent.ID, err)
	}
	if err := s.transition(ctx, intent, domain.IntentFailed); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "payment intent voided",
		slog.String("intent_id", intent.ID),
	)
	return nil
}

// GetIntent loads an intent.
func (s *PaymentService) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	return s.intents.GetByID(ctx, id)
}

// ExpireStale marks intents that never saw a verification within the window
// as expired and returns the session IDs whose reservations should be
// released.
func (s *PaymentService) ExpireStale(ctx context.Context, window time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-window)
	sessionIDs, err := s.intents.ExpireStale(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(sessionIDs) > 0 {
		s.logger.InfoContext(ctx, "stale payment intents expired",
			slog.Int("count", len(sessionIDs)),
		)
	}
	return sessionIDs, nil
}

func (s *PaymentService) transition(ctx context.Context, intent *domain.PaymentIntent, to domain.IntentStatus) error {
	if !intent.Status.CanTransition(to) {
		return apperrors.PaymentFailed(fmt.Sprintf("illegal transition %s -> %s", intent.Status, to))
	}
	ok, err := s.intents.TransitionStatus(ctx, intent.ID, intent.Status, to)
	if err != nil {
		return err
	}
	if !ok {
		// A concurrent caller won the race; re-read so the caller sees the
		// settled state.
		fresh, err := s.intents.GetByID(ctx, intent.ID)
		if err != nil {
			return err
		}
		*intent = *fresh
		if intent.Status == to {
			return nil
		}
		return apperrors.PaymentFailed(fmt.Sprintf("intent %s moved to %s concurrently", intent.ID, intent.Status))
	}
	intent.Status = to
	intent.UpdatedAt = time.Now().UTC()
	return nil
}
