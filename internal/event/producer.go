package event

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/pkg/kafka"
	"github.com/utafrali/checkout-engine/pkg/logger"
)

const (
	TopicOrders   = "order.events"
	TopicPayments = "payment.events"
	TopicTasks    = "task.events"

	TypeOrderCreated      = "order.created"
	TypeCheckoutCompleted = "checkout.completed"
	TypePaymentCaptured   = "payment.captured"
	TypePaymentFailed     = "payment.failed"
	TypeSideEffectFailed  = "task.failed"
)

const source = "checkout-engine"

// Publisher is the transport the producer writes through.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Producer publishes the engine's domain events.
type Producer struct {
	publisher Publisher
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher) *Producer {
	return &Producer{publisher: publisher}
}

// OrderCreatedData is the payload for order.created events.
type OrderCreatedData struct {
	OrderID         string          `json:"order_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	UserID          string          `json:"user_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// OrderCreated publishes an order.created event.
func (p *Producer) OrderCreated(ctx context.Context, order *domain.Order) error {
	data := OrderCreatedData{
		OrderID:         order.ID,
		InvoiceNumber:   order.InvoiceNumber,
		UserID:          order.UserID,
		PaymentIntentID: order.PaymentIntentID,
		GrandTotal:      order.Pricing.GrandTotal,
		Status:          string(order.Status),
		CreatedAt:       order.CreatedAt,
	}
	return p.publish(ctx, TopicOrders, TypeOrderCreated, order.ID, "order", data)
}

// CheckoutCompletedData is the payload for checkout.completed events.
type CheckoutCompletedData struct {
	SessionID     string          `json:"session_id"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	InvoiceNumber string          `json:"invoice_number"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	CompletedAt   time.Time       `json:"completed_at"`
}

// CheckoutCompleted publishes a checkout.completed event keyed by session.
func (p *Producer) CheckoutCompleted(ctx context.Context, sessionID string, order *domain.Order) error {
	data := CheckoutCompletedData{
		SessionID:     sessionID,
		OrderID:       order.ID,
		UserID:        order.UserID,
		InvoiceNumber: order.InvoiceNumber,
		GrandTotal:    order.Pricing.GrandTotal,
		CompletedAt:   order.CreatedAt,
	}
	return p.publish(ctx, TopicOrders, TypeCheckoutCompleted, sessionID, "checkout_session", data)
}

// PaymentStatusData is the payload for payment state change events.
type PaymentStatusData struct {
	IntentID string          `json:"intent_id"`
	Provider string          `json:"provider"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
}

// PaymentCaptured publishes a payment.captured event.
func (p *Producer) PaymentCaptured(ctx context.Context, intent *domain.PaymentIntent) error {
	return p.publishPaymentStatus(ctx, TypePaymentCaptured, intent)
}

// PaymentFailed publishes a payment.failed event.
func (p *Producer) PaymentFailed(ctx context.Context, intent *domain.PaymentIntent) error {
	return p.publishPaymentStatus(ctx, TypePaymentFailed, intent)
}

func (p *Producer) publishPaymentStatus(ctx context.Context, eventType string, intent *domain.PaymentIntent) error {
	data := PaymentStatusData{
		IntentID: intent.ID,
		Provider: intent.Provider,
		Amount:   intent.Amount,
		Currency: intent.Currency,
		Status:   string(intent.Status),
	}
	return p.publish(ctx, TopicPayments, eventType, intent.ID, "payment_intent", data)
}

// TaskFailedData is the payload for task.failed events, emitted when a side
// effect exhausts its retries.
type TaskFailedData struct {
	TaskID    string `json:"task_id"`
	OrderID   string `json:"order_id"`
	Type      string `json:"type"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
}

// SideEffectFailed publishes a task.failed event for operational monitoring.
func (p *Producer) SideEffectFailed(ctx context.Context, task *domain.SideEffectTask) error {
	data := TaskFailedData{
		TaskID:    task.ID,
		OrderID:   task.OrderID,
		Type:      string(task.Type),
		Attempts:  task.Attempts,
		LastError: task.LastError,
	}
	return p.publish(ctx, TopicTasks, TypeSideEffectFailed, task.OrderID, "side_effect_task", data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	evt, err := kafka.NewEvent(eventType, aggregateID, aggregateType, source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		evt.WithCorrelationID(correlationID)
	}
	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}
