package provider

import (
	"context"

	"github.com/google/uuid"
)

// CashGateway is the degenerate pay-on-delivery provider. Intents are
// authorized immediately with no external call and no callback ever arrives.
type CashGateway struct{}

// NewCashGateway creates the cash provider.
func NewCashGateway() *CashGateway {
	return &CashGateway{}
}

// Name returns the provider name.
func (g *CashGateway) Name() string {
	return "cash"
}

// CreateIntent issues a local handle; there is no external gateway.
func (g *CashGateway) CreateIntent(_ context.Context, _ *IntentInput) (*IntentResult, error) {
	return &IntentResult{
		ProviderIntentID: "cash_" + uuid.New().String(),
	}, nil
}

// VerifySignature never applies to cash; no callback is expected.
func (g *CashGateway) VerifySignature(_ *CallbackPayload) error {
	return nil
}

// Void is a no-op since nothing was charged.
func (g *CashGateway) Void(_ context.Context, _ string) error {
	return nil
}
