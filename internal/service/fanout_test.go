package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/sender"
	sendermock "github.com/utafrali/checkout-engine/internal/sender/mock"
)

func testFanoutConfig() FanoutConfig {
	return FanoutConfig{
		Workers:     2,
		QueueSize:   16,
		MaxAttempts: 4,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
	}
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:            "order-1",
		InvoiceNumber: "INV-2026-000001",
		UserID:        "user-1",
		Lines: []domain.CartLineItem{
			{ProductID: "prod-1", Quantity: 1, UnitPrice: decimal.NewFromInt(100)},
		},
		Pricing: domain.PricingResult{GrandTotal: decimal.NewFromInt(100)},
		Status:  domain.OrderPending,
	}
}

func TestEnqueue_DispatchesEveryChannel(t *testing.T) {
	tasks := new(mockTaskRepository)
	logger := newTestLogger()
	email := sendermock.NewSender("email", logger)
	admin := sendermock.NewSender("admin", logger)

	senders := map[domain.TaskType]sender.Sender{
		domain.TaskEmail:        email,
		domain.TaskNotification: admin,
	}
	fanout := NewNotificationFanout(tasks, senders, newTestEventProducer(), logger, testFanoutConfig())

	ctx := context.Background()
	tasks.On("ListQueued", ctx, 16).Return([]*domain.SideEffectTask(nil), nil)
	tasks.On("Create", ctx, mock.AnythingOfType("*domain.SideEffectTask")).Return(nil)
	tasks.On("Update", ctx, mock.AnythingOfType("*domain.SideEffectTask")).Return(nil)

	fanout.Start(ctx)
	fanout.Enqueue(ctx, testOrder())
	fanout.Stop()

	require.Len(t, email.Sent(), 1)
	require.Len(t, admin.Sent(), 1)
	assert.Equal(t, "order-1", email.Sent()[0].OrderID)
	tasks.AssertNumberOfCalls(t, "Create", 2)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(email.Sent()[0].Payload, &payload))
	assert.Equal(t, "INV-2026-000001", payload["invoice_number"])
	assert.EqualValues(t, 1, payload["line_count"])
}

func TestDispatch_RetriesTransientFailures(t *testing.T) {
	tasks := new(mockTaskRepository)
	logger := newTestLogger()
	email := sendermock.NewSender("email", logger)
	email.FailTimes(2)

	senders := map[domain.TaskType]sender.Sender{domain.TaskEmail: email}
	fanout := NewNotificationFanout(tasks, senders, newTestEventProducer(), logger, testFanoutConfig())

	ctx := context.Background()
	tasks.On("ListQueued", ctx, 16).Return([]*domain.SideEffectTask(nil), nil)
	tasks.On("Create", ctx, mock.AnythingOfType("*domain.SideEffectTask")).Return(nil)
	tasks.On("Update", ctx, mock.MatchedBy(func(task *domain.SideEffectTask) bool {
		return task.Status == domain.TaskSucceeded && task.Attempts == 3
	})).Return(nil)

	fanout.Start(ctx)
	fanout.Enqueue(ctx, testOrder())
	fanout.Stop()

	require.Len(t, email.Sent(), 1)
	tasks.AssertExpectations(t)
}

func TestDispatch_PermanentFailureIsRecordedNotRaised(t *testing.T) {
	tasks := new(mockTaskRepository)
	logger := newTestLogger()
	email := sendermock.NewSender("email", logger)
	email.FailTimes(10)

	senders := map[domain.TaskType]sender.Sender{domain.TaskEmail: email}
	fanout := NewNotificationFanout(tasks, senders, newTestEventProducer(), logger, testFanoutConfig())

	ctx := context.Background()
	tasks.On("ListQueued", ctx, 16).Return([]*domain.SideEffectTask(nil), nil)
	tasks.On("Create", ctx, mock.AnythingOfType("*domain.SideEffectTask")).Return(nil)
	tasks.On("Update", ctx, mock.MatchedBy(func(task *domain.SideEffectTask) bool {
		return task.Status == domain.TaskFailed && task.LastError != ""
	})).Return(nil)

	// Enqueue never surfaces the failure; the order stands regardless.
	fanout.Start(ctx)
	fanout.Enqueue(ctx, testOrder())
	fanout.Stop()

	assert.Empty(t, email.Sent())
	tasks.AssertExpectations(t)
}

func TestDispatch_ShutdownLeavesTaskQueued(t *testing.T) {
	tasks := new(mockTaskRepository)
	logger := newTestLogger()
	email := sendermock.NewSender("email", logger)
	email.FailTimes(10)

	senders := map[domain.TaskType]sender.Sender{domain.TaskEmail: email}
	fanout := NewNotificationFanout(tasks, senders, newTestEventProducer(), logger, testFanoutConfig())

	// Workers draining during shutdown run on a dead context; an aborted
	// retry must not burn the task's attempt budget.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := &domain.SideEffectTask{ID: "task-1", OrderID: "order-1", Type: domain.TaskEmail, Status: domain.TaskQueued}
	tasks.On("ListQueued", ctx, 16).Return([]*domain.SideEffectTask{task}, nil)

	fanout.Start(ctx)
	fanout.Stop()

	assert.Equal(t, domain.TaskQueued, task.Status)
	assert.Empty(t, email.Sent())
	tasks.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestStart_RequeuesPersistedTasks(t *testing.T) {
	tasks := new(mockTaskRepository)
	logger := newTestLogger()
	email := sendermock.NewSender("email", logger)

	senders := map[domain.TaskType]sender.Sender{domain.TaskEmail: email}
	fanout := NewNotificationFanout(tasks, senders, newTestEventProducer(), logger, testFanoutConfig())

	ctx := context.Background()
	pending := []*domain.SideEffectTask{
		{ID: "task-1", OrderID: "order-1", Type: domain.TaskEmail, Status: domain.TaskQueued},
	}
	tasks.On("ListQueued", ctx, 16).Return(pending, nil)
	tasks.On("Update", ctx, mock.MatchedBy(func(task *domain.SideEffectTask) bool {
		return task.ID == "task-1" && task.Status == domain.TaskSucceeded
	})).Return(nil)

	fanout.Start(ctx)
	fanout.Stop()

	require.Len(t, email.Sent(), 1)
	tasks.AssertExpectations(t)
}
