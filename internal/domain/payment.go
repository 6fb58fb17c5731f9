package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntentStatus is the payment intent state machine:
// created -> authorized -> captured, or created -> failed, or
// created -> expired when no verification arrives in time.
type IntentStatus string

const (
	IntentCreated    IntentStatus = "created"
	IntentAuthorized IntentStatus = "authorized"
	IntentCaptured   IntentStatus = "captured"
	IntentFailed     IntentStatus = "failed"
	IntentExpired    IntentStatus = "expired"
)

// CanTransition reports whether moving from the current status to next is a
// legal state machine step.
func (s IntentStatus) CanTransition(next IntentStatus) bool {
	switch s {
	case IntentCreated:
		return next == IntentAuthorized || next == IntentCaptured ||
			next == IntentFailed || next == IntentExpired
	case IntentAuthorized:
		return next == IntentCaptured || next == IntentFailed
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s IntentStatus) Terminal() bool {
	return s == IntentCaptured || s == IntentFailed || s == IntentExpired
}

// PaymentIntent tracks one payment attempt at the gateway. Its ID doubles as
// the idempotency key for order finalization.
type PaymentIntent struct {
	ID        string          `json:"id"`
	Provider  string          `json:"provider"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    IntentStatus    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
