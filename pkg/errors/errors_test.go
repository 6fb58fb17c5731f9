package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := OutOfStock([]OutOfStockItem{{ProductID: "p1", Requested: 5, Available: 3}})

	assert.True(t, errors.Is(err, ErrOutOfStock))
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Len(t, err.Items, 1)
	assert.Equal(t, "p1", err.Items[0].ProductID)
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("order", "o1"), http.StatusNotFound},
		{"invalid input", InvalidInput("bad cart"), http.StatusBadRequest},
		{"out of stock", OutOfStock(nil), http.StatusConflict},
		{"stock conflict", StockConflict(nil), http.StatusConflict},
		{"coupon expired", CouponExpired("SAVE10"), http.StatusUnprocessableEntity},
		{"coupon below minimum", CouponBelowMinimum("SAVE10", "1200"), http.StatusUnprocessableEntity},
		{"signature mismatch", SignatureMismatch(), http.StatusUnauthorized},
		{"amount mismatch", AmountMismatch("900", "1000"), http.StatusUnprocessableEntity},
		{"payment failed", PaymentFailed("declined"), http.StatusUnprocessableEntity},
		{"session expired", Gone("checkout session has expired"), http.StatusGone},
		{"wrapped sentinel", fmt.Errorf("commit: %w", ErrStockConflict), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap(ErrCouponExpired, "validate coupon")
	assert.True(t, errors.Is(err, ErrCouponExpired))
	assert.Contains(t, err.Error(), "validate coupon")
}
