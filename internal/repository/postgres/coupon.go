package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/pkg/database"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// CouponRepository reads coupon reference data from PostgreSQL.
type CouponRepository struct {
	pool database.DBTX
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool database.DBTX) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// GetByCode retrieves a coupon by its unique code.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `
		SELECT code, discount_type, discount_value, minimum_amount, valid_from, valid_until
		FROM coupons
		WHERE code = $1`

	var c domain.Coupon
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinimumAmount,
		&c.ValidFrom,
		&c.ValidUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("coupon", code)
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return &c, nil
}
