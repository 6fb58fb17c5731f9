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

// IntentRepository implements payment intent persistence using PostgreSQL.
type IntentRepository struct {
	pool database.DBTX
}

// NewIntentRepository creates a new PostgreSQL-backed intent repository.
func NewIntentRepository(pool database.DBTX) *IntentRepository {
	return &IntentRepository{pool: pool}
}

// Create inserts a new payment intent.
func (r *IntentRepository) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (id, provider, session_id, user_id, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		intent.ID,
		intent.Provider,
		intent.SessionID,
		intent.UserID,
		intent.Amount,
		intent.Currency,
		intent.Status,
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// GetByID retrieves a payment intent.
func (r *IntentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	query := `
		SELECT id, provider, session_id, user_id, amount, currency, status, created_at, updated_at
		FROM payment_intents
		WHERE id = $1`

	var intent domain.PaymentIntent
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&intent.ID,
		&intent.Provider,
		&intent.SessionID,
		&intent.UserID,
		&intent.Amount,
		&intent.Currency,
		&intent.Status,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("payment intent", id)
		}
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return &intent, nil
}

// TransitionStatus performs a conditional state machine step. The WHERE
// clause on the source status makes concurrent verifications race-safe: only
// one caller observes the transition.
func (r *IntentRepository) TransitionStatus(ctx context.Context, id string, from, to domain.IntentStatus) (bool, error) {
	query := `
		UPDATE payment_intents
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("transition intent status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireStale marks created intents older than cutoff as expired, returning
// the affected session IDs so their reservations can be released.
func (r *IntentRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		UPDATE payment_intents
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at <= $3
		RETURNING session_id`

	rows, err := r.pool.Query(ctx, query, domain.IntentExpired, domain.IntentCreated, cutoff)
	if err != nil {
		return nil, fmt.Errorf("expire stale intents: %w", err)
	}
	defer rows.Close()

	var sessionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired intent: %w", err)
		}
		sessionIDs = append(sessionIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired intents: %w", err)
	}
	return sessionIDs, nil
}
