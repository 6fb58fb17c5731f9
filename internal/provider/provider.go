package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// IntentInput holds the parameters for creating a payment intent.
type IntentInput struct {
	Amount   decimal.Decimal
	Currency string
	OrderRef string
	Metadata map[string]any
}

// IntentResult is the provider's handle for a created intent.
type IntentResult struct {
	ProviderIntentID string
	ClientSecret     string
}

// CallbackPayload is the signed notification a gateway delivers after the
// user completes (or abandons) payment. The same payload shape arrives via
// the client-side callback and the server-to-server webhook.
type CallbackPayload struct {
	IntentID  string          `json:"intent_id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Signature string          `json:"signature"`
}

// Gateway abstracts a third-party payment gateway.
type Gateway interface {
	// Name returns the provider name (e.g. "mock", "cash").
	Name() string

	// CreateIntent registers a payment attempt with the gateway.
	CreateIntent(ctx context.Context, input *IntentInput) (*IntentResult, error)

	// VerifySignature checks the cryptographic signature on a callback
	// payload. A mismatch is a security event, never silently accepted.
	VerifySignature(payload *CallbackPayload) error

	// Void reverses an authorized-but-not-captured intent, used when stock
	// commits fail after authorization.
	Void(ctx context.Context, providerIntentID string) error
}
