package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/pkg/database"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// StockRepository implements stock and reservation persistence using
// PostgreSQL. The conditional decrement is the single write primitive that
// makes oversell impossible under concurrent checkouts.
type StockRepository struct {
	pool database.DBTX
}

// NewStockRepository creates a new PostgreSQL-backed stock repository.
func NewStockRepository(pool database.DBTX) *StockRepository {
	return &StockRepository{pool: pool}
}

// GetAvailable returns the quantity currently available for sale: on-hand
// stock minus the sum of unexpired reservations held by other sessions.
func (r *StockRepository) GetAvailable(ctx context.Context, productID, variantID string) (int, error) {
	query := `
		SELECT s.on_hand - COALESCE((
			SELECT SUM(sr.quantity)
			FROM stock_reservations sr
			WHERE sr.product_id = s.product_id
			  AND sr.variant_id = s.variant_id
			  AND sr.expires_at > NOW()
		), 0)
		FROM stock s
		WHERE s.product_id = $1 AND s.variant_id = $2`

	var available int
	err := r.pool.QueryRow(ctx, query, productID, variantID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("get available stock: %w", err)
	}
	return available, nil
}

// DecrementOnHand subtracts qty in a single conditional write. The WHERE
// guard keeps on_hand from ever going negative; zero affected rows means the
// stock moved since the last check.
func (r *StockRepository) DecrementOnHand(ctx context.Context, productID, variantID string, qty int) (bool, error) {
	query := `
		UPDATE stock
		SET on_hand = on_hand - $3, updated_at = NOW()
		WHERE product_id = $1 AND variant_id = $2 AND on_hand >= $3`

	tag, err := r.pool.Exec(ctx, query, productID, variantID, qty)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementOnHand adds qty back after a partial commit failed.
func (r *StockRepository) IncrementOnHand(ctx context.Context, productID, variantID string, qty int) error {
	query := `
		UPDATE stock
		SET on_hand = on_hand + $3, updated_at = NOW()
		WHERE product_id = $1 AND variant_id = $2`

	tag, err := r.pool.Exec(ctx, query, productID, variantID, qty)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CreateReservations inserts the session's soft holds atomically.
func (r *StockRepository) CreateReservations(ctx context.Context, reservations []domain.StockReservation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO stock_reservations (id, session_id, product_id, variant_id, quantity, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, res := range reservations {
		_, err = tx.Exec(ctx, query,
			res.ID,
			res.SessionID,
			res.ProductID,
			res.VariantID,
			res.Quantity,
			res.ExpiresAt,
			res.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ReleaseBySession drops all holds for a checkout session, either because
// the commit converted them into a permanent decrement or because the
// attempt was abandoned.
func (r *StockRepository) ReleaseBySession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM stock_reservations WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("release reservations: %w", err)
	}
	return nil
}

// DeleteExpired sweeps lapsed holds and returns how many were removed.
func (r *StockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stock_reservations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}
