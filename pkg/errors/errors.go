package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared across the checkout engine.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInternal          = errors.New("internal error")
	ErrOutOfStock        = errors.New("out of stock")
	ErrStockConflict     = errors.New("stock conflict")
	ErrCouponExpired     = errors.New("coupon expired")
	ErrCouponNotStarted  = errors.New("coupon not yet valid")
	ErrCouponBelowMin    = errors.New("cart subtotal below coupon minimum")
	ErrSignatureMismatch = errors.New("callback signature mismatch")
	ErrAmountMismatch    = errors.New("callback amount mismatch")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrSessionExpired    = errors.New("checkout session expired")
)

// OutOfStockItem identifies a cart line that cannot be fulfilled. It carries
// enough identity for the client to prune exactly that line and resubmit.
type OutOfStockItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// AppError is a structured application error with an HTTP status mapping and
// optional per-item stock details for 409 responses.
type AppError struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Items   []OutOfStockItem `json:"out_of_stock_items,omitempty"`
	Status  int              `json:"-"`
	Err     error            `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// OutOfStock creates a 409 error listing the lines that cannot be fulfilled.
// Recoverable: the client removes exactly these lines and resubmits.
func OutOfStock(items []OutOfStockItem) *AppError {
	return &AppError{
		Code:    "OUT_OF_STOCK",
		Message: fmt.Sprintf("%d item(s) exceed available stock", len(items)),
		Items:   items,
		Status:  http.StatusConflict,
		Err:     ErrOutOfStock,
	}
}

// StockConflict creates a 409 error for a failed atomic stock commit. The
// conflicting lines are reported the same way as a dry-run failure.
func StockConflict(items []OutOfStockItem) *AppError {
	return &AppError{
		Code:    "STOCK_CONFLICT",
		Message: "stock changed between check and commit",
		Items:   items,
		Status:  http.StatusConflict,
		Err:     ErrStockConflict,
	}
}

// CouponExpired creates a 422 error for a coupon outside its validity window.
func CouponExpired(code string) *AppError {
	return &AppError{
		Code:    "COUPON_EXPIRED",
		Message: fmt.Sprintf("coupon %q is no longer valid", code),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrCouponExpired,
	}
}

// CouponNotStarted creates a 422 error for a coupon used before its validity
// window opens.
func CouponNotStarted(code string) *AppError {
	return &AppError{
		Code:    "COUPON_NOT_STARTED",
		Message: fmt.Sprintf("coupon %q is not yet valid", code),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrCouponNotStarted,
	}
}

// CouponBelowMinimum creates a 422 error for a cart below the coupon's
// qualifying subtotal.
func CouponBelowMinimum(code string, minimum string) *AppError {
	return &AppError{
		Code:    "COUPON_BELOW_MINIMUM",
		Message: fmt.Sprintf("coupon %q requires a subtotal of at least %s", code, minimum),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrCouponBelowMin,
	}
}

// SignatureMismatch creates a 401 error for a gateway callback whose
// signature does not verify. Treated as a security event by callers.
func SignatureMismatch() *AppError {
	return &AppError{
		Code:    "SIGNATURE_MISMATCH",
		Message: "callback signature verification failed",
		Status:  http.StatusUnauthorized,
		Err:     ErrSignatureMismatch,
	}
}

// AmountMismatch creates a 422 error for a callback whose amount differs
// from the intent amount.
func AmountMismatch(got, want string) *AppError {
	return &AppError{
		Code:    "AMOUNT_MISMATCH",
		Message: fmt.Sprintf("callback amount %s does not match intent amount %s", got, want),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrAmountMismatch,
	}
}

// PaymentFailed creates a 422 error for a declined or failed charge.
func PaymentFailed(message string) *AppError {
	return &AppError{
		Code:    "PAYMENT_FAILED",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrPaymentFailed,
	}
}

// Gone creates a 410 error for an expired checkout session.
func Gone(message string) *AppError {
	return &AppError{
		Code:    "SESSION_EXPIRED",
		Message: message,
		Status:  http.StatusGone,
		Err:     ErrSessionExpired,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrOutOfStock), errors.Is(err, ErrStockConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrSignatureMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, ErrCouponExpired), errors.Is(err, ErrCouponBelowMin),
		errors.Is(err, ErrAmountMismatch), errors.Is(err, ErrPaymentFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrSessionExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
