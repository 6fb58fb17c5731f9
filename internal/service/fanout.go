package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/internal/event"
	"github.com/utafrali/checkout-engine/internal/repository"
	"github.com/utafrali/checkout-engine/internal/sender"
)

var fanoutTasksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fanout_tasks_total",
		Help: "Side effect task outcomes by type and result",
	},
	[]string{"type", "result"},
)

// FanoutConfig holds dispatcher tuning.
type FanoutConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultFanoutConfig returns sensible fanout defaults.
func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		Workers:     4,
		QueueSize:   256,
		MaxAttempts: 5,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     30 * time.Second,
	}
}

// NotificationFanout dispatches post-order side effects (receipt email,
// admin notification, carrier booking) without ever blocking or failing the
// checkout response. Each task retries independently with backoff; permanent
// failure is recorded and surfaced to monitoring only.
type NotificationFanout struct {
	tasks    repository.TaskRepository
	senders  map[domain.TaskType]sender.Sender
	producer *event.Producer
	logger   *slog.Logger
	cfg      FanoutConfig

	queue chan *domain.SideEffectTask
	wg    sync.WaitGroup
}

// NewNotificationFanout creates a new fanout dispatcher.
func NewNotificationFanout(
	tasks repository.TaskRepository,
	senders map[domain.TaskType]sender.Sender,
	producer *event.Producer,
	logger *slog.Logger,
	cfg FanoutConfig,
) *NotificationFanout {
	return &NotificationFanout{
		tasks:    tasks,
		senders:  senders,
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		queue:    make(chan *domain.SideEffectTask, cfg.QueueSize),
	}
}

// Start launches the dispatch workers and requeues tasks that were persisted
// but never attempted before the last shutdown.
func (f *NotificationFanout) Start(ctx context.Context) {
	for i := 0; i < f.cfg.Workers; i++ {
		f.wg.Add(1)
		go f.worker(ctx)
	}

	if pending, err := f.tasks.ListQueued(ctx, f.cfg.QueueSize); err != nil {
		f.logger.Error("failed to load pending tasks", slog.String("error", err.Error()))
	} else {
		for _, task := range pending {
			f.offer(task)
		}
	}
}

// Stop drains the queue and waits for in-flight dispatches.
func (f *NotificationFanout) Stop() {
	close(f.queue)
	f.wg.Wait()
}

// Enqueue persists and queues one task per configured channel for the order.
// Errors are logged, never returned: a fanout problem must not reach the
// checkout caller or touch the already-created order.
func (f *NotificationFanout) Enqueue(ctx context.Context, order *domain.Order) {
	payload, err := json.Marshal(map[string]any{
		"order_id":       order.ID,
		"invoice_number": order.InvoiceNumber,
		"user_id":        order.UserID,
		"grand_total":    order.Pricing.GrandTotal.String(),
		"line_count":     len(order.Lines),
	})
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to build task payload",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	now := time.Now().UTC()
	for taskType := range f.senders {
		task := &domain.SideEffectTask{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			Type:      taskType,
			Payload:   payload,
			Status:    domain.TaskQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := f.tasks.Create(ctx, task); err != nil {
			f.logger.ErrorContext(ctx, "failed to persist task",
				slog.String("order_id", order.ID),
				slog.String("type", string(taskType)),
				slog.String("error", err.Error()),
			)
			continue
		}
		f.offer(task)
	}
}

func (f *NotificationFanout) offer(task *domain.SideEffectTask) {
	select {
	case f.queue <- task:
	default:
		f.logger.Warn("fanout queue full, task stays queued for restart pickup",
			slog.String("task_id", task.ID),
			slog.String("type", string(task.Type)),
		)
	}
}

func (f *NotificationFanout) worker(ctx context.Context) {
	defer f.wg.Done()
	for task := range f.queue {
		f.dispatch(ctx, task)
	}
}

func (f *NotificationFanout) dispatch(ctx context.Context, task *domain.SideEffectTask) {
	snd, ok := f.senders[task.Type]
	if !ok {
		f.fail(ctx, task, fmt.Sprintf("no sender for type %s", task.Type))
		return
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = f.cfg.InitialWait
	expo.MaxInterval = f.cfg.MaxWait

	operation := func() (struct{}, error) {
		task.Attempts++
		if err := snd.Send(ctx, task); err != nil {
			f.logger.WarnContext(ctx, "side effect attempt failed",
				slog.String("task_id", task.ID),
				slog.String("type", string(task.Type)),
				slog.Int("attempt", task.Attempts),
				slog.String("error", err.Error()),
			)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(f.cfg.MaxAttempts)),
	)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown cut the retries short; leave the task queued so the
			// restart pickup resurrects it with a fresh attempt budget.
			f.logger.WarnContext(ctx, "side effect interrupted by shutdown, task stays queued",
				slog.String("task_id", task.ID),
				slog.String("type", string(task.Type)),
			)
			return
		}
		f.fail(ctx, task, err.Error())
		return
	}

	task.Status = domain.TaskSucceeded
	task.LastError = ""
	fanoutTasksTotal.WithLabelValues(string(task.Type), "succeeded").Inc()
	if err := f.tasks.Update(ctx, task); err != nil {
		f.logger.ErrorContext(ctx, "failed to record task success",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (f *NotificationFanout) fail(ctx context.Context, task *domain.SideEffectTask, reason string) {
	task.Status = domain.TaskFailed
	task.LastError = reason
	fanoutTasksTotal.WithLabelValues(string(task.Type), "failed").Inc()

	f.logger.ErrorContext(ctx, "side effect permanently failed",
		slog.String("task_id", task.ID),
		slog.String("order_id", task.OrderID),
		slog.String("type", string(task.Type)),
		slog.Int("attempts", task.Attempts),
		slog.String("error", reason),
	)

	if err := f.tasks.Update(ctx, task); err != nil {
		f.logger.ErrorContext(ctx, "failed to record task failure",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := f.producer.SideEffectFailed(ctx, task); err != nil {
		f.logger.ErrorContext(ctx, "failed to publish task event",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}
