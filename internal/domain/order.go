package domain

import (
	"fmt"
	"time"
)

// OrderStatus is the order lifecycle. Creation always starts at Pending;
// later transitions are owned by fulfillment. Cancelled and RefundPending
// cover stock conflicts discovered after money was captured.
type OrderStatus string

const (
	OrderPending       OrderStatus = "pending"
	OrderProcessing    OrderStatus = "processing"
	OrderDelivered     OrderStatus = "delivered"
	OrderCancelled     OrderStatus = "cancelled"
	OrderRefundPending OrderStatus = "refund_pending"
)

// Order is the finalized checkout outcome. Exactly one row exists per
// payment intent; the cart and pricing snapshots are frozen at creation so
// the total stays reproducible from stored data.
type Order struct {
	ID              string         `json:"id"`
	InvoiceNumber   string         `json:"invoice_number"`
	UserID          string         `json:"user_id"`
	Lines           []CartLineItem `json:"lines"`
	Pricing         PricingResult  `json:"pricing"`
	PaymentMethod   string         `json:"payment_method"`
	PaymentIntentID string         `json:"payment_intent_id"`
	Status          OrderStatus    `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// InvoiceNumber formats a sequential invoice reference for the given year.
func InvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%06d", year, seq)
}
