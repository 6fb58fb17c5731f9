package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkout-engine/internal/domain"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

func newTestStockGuard(stock *mockStockRepository, reservations *mockReservationRepository) *StockGuard {
	return NewStockGuard(stock, reservations, newTestLogger())
}

func cartLine(productID string, qty int) domain.CartLineItem {
	return domain.CartLineItem{
		ProductID: productID,
		Quantity:  qty,
	}
}

func TestCheck_ReturnsExactlyShortLines(t *testing.T) {
	stock := new(mockStockRepository)
	reservations := new(mockReservationRepository)
	guard := newTestStockGuard(stock, reservations)
	ctx := context.Background()

	stock.On("GetAvailable", ctx, "prod-1", "").Return(10, nil)
	stock.On("GetAvailable", ctx, "prod-2", "").Return(1, nil)

	short, err := guard.Check(ctx, []domain.CartLineItem{
		cartLine("prod-1", 2),
		cartLine("prod-2", 3),
	})

	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, "prod-2", short[0].ProductID)
	assert.Equal(t, 3, short[0].Requested)
	assert.Equal(t, 1, short[0].Available)
}

func TestCheck_ClampsNegativeAvailability(t *testing.T) {
	stock := new(mockStockRepository)
	reservations := new(mockReservationRepository)
	guard := newTestStockGuard(stock, reservations)
	ctx := context.Background()

	// Reservations can exceed on-hand, making the computed availability
	// negative. The client-facing number is floored at zero.
	stock.On("GetAvailable", ctx, "prod-1", "").Return(-2, nil)

	short, err := guard.Check(ctx, []domain.CartLineItem{cartLine("prod-1", 1)})

	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, 0, short[0].Available)
}

func TestReserve_PlacesHoldsWhenAvailable(t *testing.T) {
	stock := new(mockStockRepository)
	reservations := new(mockReservationRepository)
	guard := newTestStockGuard(stock, reservations)
	ctx := context.Background()

	stock.On("GetAvailable", ctx, "prod-1", "").Return(5, nil)
	reservations.On("CreateReservations", ctx, mock.MatchedBy(func(rs []domain.StockReservation) bool {
		return len(rs) == 1 && rs[0].SessionID == "sess-1" && rs[0].Quantity == 2
	})).Return(nil)

	err := guard.Reserve(ctx, "sess-1", []domain.CartLineItem{cartLine("prod-1", 2)}, 15*time.Minute)

	require.NoError(t, err)
	reservations.AssertExpectations(t)
}

func TestReserve_RejectsShortCart(t *testing.T) {
	stock := new(mockStockRepository)
	reservations := new(mockReservationRepository)
	guard := newTestStockGuard(stock, reservations)
	ctx := context.Background()

	stock.On("GetAvailable", ctx, "prod-1", "").Return(1, nil)

	err := guard.Reserve(ctx, "sess-1", []domain.CartLineItem{cartLine("prod-1", 2)}, 15*time.Minute)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrOutOfStock)
	reservations.AssertNotCalled(t, "CreateReservations", mock.Anything, mock.Anything)
}

func TestCommit_DecrementsAllLines(t *testing.T) {
	stock := new(mockStockRepository)
	reservations := new(mockReservationRepository)
	guard := newTestStockGuard(stock, reservations)
	ctx := context.Background()

	reservations.On("ReleaseBySession", ctx, "sess-1").Return(nil)
	stock.On("DecrementOnHand", ctx, "prod-1", "", 2).Return(true, nil)
	stock.On("DecrementOnHand", ctx, "prod-2", "", 1).Return(true, nil)

	err := guard.Commit(ctx, "sess-1", []domain.CartLineItem{
		cartLine("prod-1", 2),
		cartLine("prod-2", 1),
	})

	require.NoError(t, err)
	stock.AssertExpectations(t)
}

func TestCommit_CompensatesPartialDecrementOnConflict(t *testing.T) {
	stock := new(mockStockRepository)
	reservations := new(mockReservationRepository)
	guard := newTestStockGuard(stock, reservations)
	ctx := context.Background()

	reservations.On("ReleaseBySession", ctx, "sess-1").Return(nil)
	stock.On("DecrementOnHand", ctx, "prod-1", "", 2).Return(true, nil)
	stock.On("DecrementOnHand", ctx, "prod-2", "", 3).Return(false, nil)
	stock.On("GetAvailable", ctx, "prod-2", "").Return(1, nil)
	// The first line's decrement must be undone.
	stock.On("IncrementOnHand", ctx, "prod-1", "", 2).Return(nil)

	err := guard.Commit(ctx, "sess-1", []domain.CartLineItem{
		cartLine("prod-1", 2),
		cartLine("prod-2", 3),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStockConflict)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Len(t, appErr.Items, 1)
	assert.Equal(t, "prod-2", appErr.Items[0].ProductID)
	assert.Equal(t, 1, appErr.Items[0].Available)

	stock.AssertCalled(t, "IncrementOnHand", ctx, "prod-1", "", 2)
}

func TestCommit_CompensatesOnRepositoryError(t *testing.T) {
	stock := new(mockStockRepository)
	reservations := new(mockReservationRepository)
	guard := newTestStockGuard(stock, reservations)
	ctx := context.Background()

	reservations.On("ReleaseBySession", ctx, "sess-1").Return(nil)
	stock.On("DecrementOnHand", ctx, "prod-1", "", 1).Return(true, nil)
	stock.On("DecrementOnHand", ctx, "prod-2", "", 1).Return(false, errors.New("connection reset"))
	stock.On("IncrementOnHand", ctx, "prod-1", "", 1).Return(nil)

	err := guard.Commit(ctx, "sess-1", []domain.CartLineItem{
		cartLine("prod-1", 1),
		cartLine("prod-2", 1),
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrStockConflict)
	stock.AssertCalled(t, "IncrementOnHand", ctx, "prod-1", "", 1)
}

func TestRelease_DropsSessionHolds(t *testing.T) {
	stock := new(mockStockRepository)
	reservations := new(mockReservationRepository)
	guard := newTestStockGuard(stock, reservations)
	ctx := context.Background()

	reservations.On("ReleaseBySession", ctx, "sess-1").Return(nil)

	require.NoError(t, guard.Release(ctx, "sess-1"))
	reservations.AssertExpectations(t)
}
