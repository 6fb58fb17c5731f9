package sender

import (
	"context"
	"fmt"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/pkg/kafka"
)

const emailTopic = "email.outbound"

// EmailSender hands receipt emails to the mail pipeline over Kafka. The
// actual SMTP delivery happens in a downstream consumer.
type EmailSender struct {
	producer *kafka.Producer
}

// NewEmailSender creates a Kafka-backed email sender.
func NewEmailSender(producer *kafka.Producer) *EmailSender {
	return &EmailSender{producer: producer}
}

// Name returns the sender name.
func (s *EmailSender) Name() string {
	return "email"
}

// Send publishes the receipt payload to the mail topic.
func (s *EmailSender) Send(ctx context.Context, task *domain.SideEffectTask) error {
	evt, err := kafka.NewEvent("email.receipt", task.OrderID, "order", "checkout-engine", task.Payload)
	if err != nil {
		return fmt.Errorf("create email event: %w", err)
	}
	if err := s.producer.Publish(ctx, emailTopic, evt); err != nil {
		return fmt.Errorf("send receipt email: %w", err)
	}
	return nil
}
