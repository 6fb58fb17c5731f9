package mock

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/utafrali/checkout-engine/internal/domain"
)

var errSimulated = errors.New("simulated sender failure")

// Sender is a test double that records every task it receives and can be
// made to fail a fixed number of times before succeeding.
type Sender struct {
	name     string
	logger   *slog.Logger
	mu       sync.Mutex
	sent     []*domain.SideEffectTask
	failures int
}

// NewSender creates a mock sender for the given channel name.
func NewSender(name string, logger *slog.Logger) *Sender {
	return &Sender{name: name, logger: logger}
}

// FailTimes makes the next n Send calls return an error.
func (s *Sender) FailTimes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// Name returns the sender name.
func (s *Sender) Name() string {
	return s.name
}

// Send records the task, honoring any configured failures.
func (s *Sender) Send(ctx context.Context, task *domain.SideEffectTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return errSimulated
	}

	s.sent = append(s.sent, task)
	s.logger.InfoContext(ctx, "mock sender: task delivered",
		slog.String("sender", s.name),
		slog.String("task_id", task.ID),
		slog.String("order_id", task.OrderID),
	)
	return nil
}

// Sent returns a copy of the delivered tasks.
func (s *Sender) Sent() []*domain.SideEffectTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.SideEffectTask, len(s.sent))
	copy(out, s.sent)
	return out
}
