package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/utafrali/checkout-engine/internal/domain"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ShippingResolver quotes shipping cost for a cart from the external
// shipping-rate collaborator.
type ShippingResolver struct {
	client  HTTPDoer
	baseURL string
}

// NewShippingResolver creates a shipping resolver against the given rate
// service base URL.
func NewShippingResolver(client HTTPDoer, baseURL string) *ShippingResolver {
	return &ShippingResolver{client: client, baseURL: baseURL}
}

// Resolve fetches the cost for the chosen shipping option and cart weight
// proxy (total units).
func (s *ShippingResolver) Resolve(ctx context.Context, option string, lines []domain.CartLineItem) (decimal.Decimal, error) {
	if option == "" {
		return decimal.Zero, nil
	}

	units := 0
	for _, line := range lines {
		units += line.Quantity
	}

	rateURL := fmt.Sprintf("%s/v1/rates?option=%s&units=%d", s.baseURL, url.QueryEscape(option), units)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rateURL, http.NoBody)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create rate request: %w", err)
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch shipping rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, apperrors.InvalidInput(fmt.Sprintf("unknown shipping option %q", option))
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("shipping rate service returned status %d", resp.StatusCode)
	}

	var body struct {
		Cost decimal.Decimal `json:"cost"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode shipping rate: %w", err)
	}
	if body.Cost.IsNegative() {
		return decimal.Zero, fmt.Errorf("shipping rate service returned negative cost")
	}
	return body.Cost, nil
}
