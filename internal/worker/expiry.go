package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/checkout-engine/internal/repository"
	"github.com/utafrali/checkout-engine/internal/service"
)

// ExpiryWorker periodically releases lapsed stock reservations and expires
// payment intents that never saw a verification. Abandoned checkouts need no
// explicit cancellation from the client; this sweep is what returns their
// inventory.
type ExpiryWorker struct {
	payments     *service.PaymentService
	stock        *service.StockGuard
	reservations repository.ReservationRepository
	logger       *slog.Logger

	interval     time.Duration
	intentWindow time.Duration
	done         chan struct{}
	stopOnce     sync.Once
}

// NewExpiryWorker creates a new expiry sweeper.
func NewExpiryWorker(
	payments *service.PaymentService,
	stock *service.StockGuard,
	reservations repository.ReservationRepository,
	logger *slog.Logger,
	interval, intentWindow time.Duration,
) *ExpiryWorker {
	return &ExpiryWorker{
		payments:     payments,
		stock:        stock,
		reservations: reservations,
		logger:       logger,
		interval:     interval,
		intentWindow: intentWindow,
		done:         make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (w *ExpiryWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.sweep(ctx)
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}
		}
	}()
}

// Stop ends the sweep loop.
func (w *ExpiryWorker) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	sessionIDs, err := w.payments.ExpireStale(ctx, w.intentWindow)
	if err != nil {
		w.logger.Error("intent expiry sweep failed", slog.String("error", err.Error()))
	}
	for _, sessionID := range sessionIDs {
		if err := w.stock.Release(ctx, sessionID); err != nil {
			w.logger.Error("failed to release holds for expired intent",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	released, err := w.reservations.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		w.logger.Error("reservation expiry sweep failed", slog.String("error", err.Error()))
		return
	}
	if released > 0 || len(sessionIDs) > 0 {
		w.logger.Info("expiry sweep completed",
			slog.Int("expired_intents", len(sessionIDs)),
			slog.Int64("released_reservations", released),
		)
	}
}
