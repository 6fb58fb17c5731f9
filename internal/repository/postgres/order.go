package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/pkg/database"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// OrderRepository implements order persistence using PostgreSQL. The unique
// constraint on payment_intent_id is what guarantees at-most-one order per
// payment regardless of application-level races.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, invoice_number, user_id, lines, pricing, payment_method, payment_intent_id, status, created_at, updated_at`

// CreateIdempotent inserts the order unless one already exists for the same
// payment intent. ON CONFLICT DO NOTHING closes the race between a client
// retry and a concurrent webhook: the loser of the insert re-reads the
// winner's row and returns it unchanged.
func (r *OrderRepository) CreateIdempotent(ctx context.Context, o *domain.Order) (*domain.Order, bool, error) {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, false, fmt.Errorf("marshal order lines: %w", err)
	}
	pricingJSON, err := json.Marshal(o.Pricing)
	if err != nil {
		return nil, false, fmt.Errorf("marshal order pricing: %w", err)
	}

	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('invoice_seq')`).Scan(&seq); err != nil {
		return nil, false, fmt.Errorf("next invoice number: %w", err)
	}
	o.InvoiceNumber = domain.InvoiceNumber(time.Now().UTC().Year(), seq)

	query := `
		INSERT INTO orders (id, invoice_number, user_id, lines, pricing, payment_method, payment_intent_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (payment_intent_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		o.ID,
		o.InvoiceNumber,
		o.UserID,
		linesJSON,
		pricingJSON,
		o.PaymentMethod,
		o.PaymentIntentID,
		o.Status,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert order: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return o, true, nil
	}

	existing, err := r.GetByPaymentIntentID(ctx, o.PaymentIntentID)
	if err != nil {
		return nil, false, fmt.Errorf("reread order after conflict: %w", err)
	}
	return existing, false, nil
}

// GetByID retrieves an order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, id), id)
}

// GetByPaymentIntentID retrieves the order created for a payment intent.
func (r *OrderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE payment_intent_id = $1`, orderColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, intentID), intentID)
}

// ListByUser returns a page of the user's orders, newest first, together
// with the total count.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int, error) {
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, orderColumns)

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	var total int
	for rows.Next() {
		var o domain.Order
		var linesJSON, pricingJSON []byte
		if err := rows.Scan(
			&o.ID,
			&o.InvoiceNumber,
			&o.UserID,
			&linesJSON,
			&pricingJSON,
			&o.PaymentMethod,
			&o.PaymentIntentID,
			&o.Status,
			&o.CreatedAt,
			&o.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		if err := unmarshalSnapshots(&o, linesJSON, pricingJSON); err != nil {
			return nil, 0, err
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus sets the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}

func (r *OrderRepository) scanOne(row pgx.Row, id string) (*domain.Order, error) {
	var o domain.Order
	var linesJSON, pricingJSON []byte
	err := row.Scan(
		&o.ID,
		&o.InvoiceNumber,
		&o.UserID,
		&linesJSON,
		&pricingJSON,
		&o.PaymentMethod,
		&o.PaymentIntentID,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := unmarshalSnapshots(&o, linesJSON, pricingJSON); err != nil {
		return nil, err
	}
	return &o, nil
}

func unmarshalSnapshots(o *domain.Order, linesJSON, pricingJSON []byte) error {
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return fmt.Errorf("unmarshal order lines: %w", err)
	}
	if err := json.Unmarshal(pricingJSON, &o.Pricing); err != nil {
		return fmt.Errorf("unmarshal order pricing: %w", err)
	}
	return nil
}
