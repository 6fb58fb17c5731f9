package domain

import "time"

// StockLevel is the current inventory position for a product variant.
type StockLevel struct {
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	OnHand    int       `json:"on_hand"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockReservation is a soft hold on inventory bridging the gap between the
// availability check and payment completion. It expires automatically.
type StockReservation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the reservation hold has lapsed.
func (r StockReservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
