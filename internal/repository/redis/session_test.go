package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkout-engine/internal/domain"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

func setupRepo(t *testing.T) (*SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionRepository(client), mr
}

func sampleSession() *domain.CheckoutSession {
	return &domain.CheckoutSession{
		ID:     "sess-1",
		UserID: "user-1",
		Lines: []domain.CartLineItem{{
			ProductID: "prod-1",
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(500),
			TaxMode:   domain.TaxExclusive,
		}},
		Status:    domain.SessionOpen,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSessionSaveAndGet(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	session := sampleSession()
	require.NoError(t, repo.Save(ctx, session, time.Hour))

	got, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.UserID, got.UserID)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].UnitPrice.Equal(decimal.NewFromInt(500)))
}

func TestSessionGetMissingIsGone(t *testing.T) {
	repo, _ := setupRepo(t)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestSessionExpiresWithTTL(t *testing.T) {
	repo, mr := setupRepo(t)
	ctx := context.Background()

	session := sampleSession()
	require.NoError(t, repo.Save(ctx, session, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := repo.Get(ctx, session.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestSessionDelete(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	session := sampleSession()
	require.NoError(t, repo.Save(ctx, session, time.Hour))
	require.NoError(t, repo.Delete(ctx, session.ID))

	_, err := repo.Get(ctx, session.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
}
