package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/pkg/database"
)

// AdminSender records an order notification row for the back-office inbox.
type AdminSender struct {
	pool database.DBTX
}

// NewAdminSender creates an admin notification sender.
func NewAdminSender(pool database.DBTX) *AdminSender {
	return &AdminSender{pool: pool}
}

// Name returns the sender name.
func (s *AdminSender) Name() string {
	return "notification"
}

// Send inserts the admin notification record.
func (s *AdminSender) Send(ctx context.Context, task *domain.SideEffectTask) error {
	var payload struct {
		InvoiceNumber string `json:"invoice_number"`
		UserID        string `json:"user_id"`
		GrandTotal    string `json:"grand_total"`
	}
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("decode admin payload: %w", err)
	}

	query := `
		INSERT INTO admin_notifications (id, order_id, invoice_number, message, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	message := fmt.Sprintf("new order %s from user %s, total %s",
		payload.InvoiceNumber, payload.UserID, payload.GrandTotal)

	_, err := s.pool.Exec(ctx, query,
		uuid.New().String(),
		task.OrderID,
		payload.InvoiceNumber,
		message,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert admin notification: %w", err)
	}
	return nil
}
