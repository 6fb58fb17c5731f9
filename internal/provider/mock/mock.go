package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/utafrali/checkout-engine/internal/provider"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// Gateway is a mock payment gateway for development and testing. It signs
// and verifies callbacks with a shared secret like a real gateway would.
type Gateway struct {
	secret string
}

// NewGateway creates a mock gateway with the given webhook secret.
func NewGateway(secret string) *Gateway {
	return &Gateway{secret: secret}
}

// Name returns the provider name.
func (g *Gateway) Name() string {
	return "mock"
}

// CreateIntent always succeeds.
func (g *Gateway) CreateIntent(_ context.Context, _ *provider.IntentInput) (*provider.IntentResult, error) {
	return &provider.IntentResult{
		ProviderIntentID: "mock_pi_" + uuid.New().String(),
		ClientSecret:     "mock_secret_" + uuid.New().String(),
	}, nil
}

// VerifySignature checks the payload HMAC against the shared secret.
func (g *Gateway) VerifySignature(payload *provider.CallbackPayload) error {
	if !provider.VerifyCallbackSignature(g.secret, payload) {
		return apperrors.SignatureMismatch()
	}
	return nil
}

// Void always succeeds.
func (g *Gateway) Void(_ context.Context, _ string) error {
	return nil
}

// Sign computes a valid callback signature, for tests driving the webhook
// path end to end.
func (g *Gateway) Sign(payload *provider.CallbackPayload) string {
	return provider.SignCallback(g.secret, payload)
}
