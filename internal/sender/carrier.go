package sender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/utafrali/checkout-engine/internal/domain"
)

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CarrierSender books shipments with the carrier's HTTP API.
type CarrierSender struct {
	client  HTTPDoer
	baseURL string
}

// NewCarrierSender creates a carrier sender targeting the given API base URL.
func NewCarrierSender(client HTTPDoer, baseURL string) *CarrierSender {
	return &CarrierSender{client: client, baseURL: baseURL}
}

// Name returns the sender name.
func (s *CarrierSender) Name() string {
	return "carrier-sync"
}

// Send posts the booking payload to the carrier.
func (s *CarrierSender) Send(ctx context.Context, task *domain.SideEffectTask) error {
	url := s.baseURL + "/v1/shipments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(task.Payload))
	if err != nil {
		return fmt.Errorf("create carrier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("book shipment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("carrier rejected booking: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
