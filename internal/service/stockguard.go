package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/repository"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// StockGuard enforces the two-phase stock protocol: a repeatable dry-run
// check, a soft reservation with TTL, and an all-or-nothing atomic commit.
type StockGuard struct {
	stock        repository.StockRepository
	reservations repository.ReservationRepository
	logger       *slog.Logger
}

// NewStockGuard creates a new stock guard.
func NewStockGuard(
	stock repository.StockRepository,
	reservations repository.ReservationRepository,
	logger *slog.Logger,
) *StockGuard {
	return &StockGuard{
		stock:        stock,
		reservations: reservations,
		logger:       logger,
	}
}

// Check is a non-committing dry run: it returns exactly the lines whose
// requested quantity exceeds current availability, leaving the rest
// untouched. Stock is dynamic, so callers may repeat this at will.
func (g *StockGuard) Check(ctx context.Context, lines []domain.CartLineItem) ([]apperrors.OutOfStockItem, error) {
	var short []apperrors.OutOfStockItem
	for _, line := range lines {
		available, err := g.stock.GetAvailable(ctx, line.ProductID, line.VariantID)
		if err != nil {
			return nil, fmt.Errorf("check stock for %s: %w", line.ProductID, err)
		}
		if available < line.Quantity {
			short = append(short, apperrors.OutOfStockItem{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: max(available, 0),
			})
		}
	}
	return short, nil
}

// Reserve runs a check and, when everything is available, places soft holds
// with the given TTL. The holds count against availability for other
// sessions, closing the oversell window between intent creation and payment
// completion. Abandoned holds lapse on their own.
func (g *StockGuard) Reserve(ctx context.Context, sessionID string, lines []domain.CartLineItem, ttl time.Duration) error {
	short, err := g.Check(ctx, lines)
	if err != nil {
		return err
	}
	if len(short) > 0 {
		return apperrors.OutOfStock(short)
	}

	now := time.Now().UTC()
	reservations := make([]domain.StockReservation, 0, len(lines))
	for _, line := range lines {
		reservations = append(reservations, domain.StockReservation{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		})
	}
	if err := g.reservations.CreateReservations(ctx, reservations); err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	g.logger.InfoContext(ctx, "stock reserved",
		slog.String("session_id", sessionID),
		slog.Int("lines", len(reservations)),
		slog.Duration("ttl", ttl),
	)
	return nil
}

// Commit converts the session's holds into permanent decrements. Each line
// goes through a single conditional write; if any line's guard rejects, the
// decrements already applied in this call are compensated and the whole
// commit fails with a stock conflict. Never leaves a partial decrement.
func (g *StockGuard) Commit(ctx context.Context, sessionID string, lines []domain.CartLineItem) error {
	// Release our own holds first so they stop counting against the
	// conditional decrement below.
	if err := g.reservations.ReleaseBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("release holds before commit: %w", err)
	}

	applied := make([]domain.CartLineItem, 0, len(lines))
	for _, line := range lines {
		ok, err := g.stock.DecrementOnHand(ctx, line.ProductID, line.VariantID, line.Quantity)
		if err != nil {
			g.rollback(ctx, sessionID, applied)
			return fmt.Errorf("commit stock for %s: %w", line.ProductID, err)
		}
		if !ok {
			g.rollback(ctx, sessionID, applied)
			available, availErr := g.stock.GetAvailable(ctx, line.ProductID, line.VariantID)
			if availErr != nil {
				available = 0
			}
			return apperrors.StockConflict([]apperrors.OutOfStockItem{{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: max(available, 0),
			}})
		}
		applied = append(applied, line)
	}

	g.logger.InfoContext(ctx, "stock committed",
		slog.String("session_id", sessionID),
		slog.Int("lines", len(lines)),
	)
	return nil
}

// Reverse compensates a fully committed decrement after the caller loses
// the order-creation race to a concurrent settlement: the winner's commit
// stands, this one's must be undone so on_hand stays accurate.
func (g *StockGuard) Reverse(ctx context.Context, sessionID string, lines []domain.CartLineItem) {
	g.rollback(ctx, sessionID, lines)
	g.logger.InfoContext(ctx, "stock commit reversed",
		slog.String("session_id", sessionID),
		slog.Int("lines", len(lines)),
	)
}

// Release drops the session's holds after an abandoned or failed attempt.
func (g *StockGuard) Release(ctx context.Context, sessionID string) error {
	if err := g.reservations.ReleaseBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("release stock holds: %w", err)
	}
	return nil
}

func (g *StockGuard) rollback(ctx context.Context, sessionID string, applied []domain.CartLineItem) {
	for _, line := range applied {
		if err := g.stock.IncrementOnHand(ctx, line.ProductID, line.VariantID, line.Quantity); err != nil {
			g.logger.ErrorContext(ctx, "stock compensation failed",
				slog.String("session_id", sessionID),
				slog.String("product_id", line.ProductID),
				slog.Int("quantity", line.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}
