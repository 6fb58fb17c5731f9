package domain

import (
	"encoding/json"
	"time"
)

// TaskType identifies a post-order side effect.
type TaskType string

const (
	TaskEmail        TaskType = "email"
	TaskNotification TaskType = "notification"
	TaskCarrierSync  TaskType = "carrier-sync"
)

// TaskStatus is the side-effect task lifecycle. Task failures never affect
// the Order that spawned them.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// SideEffectTask is one best-effort unit of post-order work (receipt email,
// admin notification, carrier booking), retried independently with backoff.
type SideEffectTask struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Type      TaskType        `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Status    TaskStatus      `json:"status"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
