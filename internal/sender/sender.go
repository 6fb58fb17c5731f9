package sender

import (
	"context"

	"github.com/utafrali/checkout-engine/internal/domain"
)

// Sender delivers one kind of side-effect task to its external sink.
type Sender interface {
	Name() string
	Send(ctx context.Context, task *domain.SideEffectTask) error
}
