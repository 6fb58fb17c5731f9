package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/checkout-engine/internal/domain"
	"github.com/utafrali/checkout-engine/pkg/database"
	apperrors "github.com/utafrali/checkout-engine/pkg/errors"
)

// TaskRepository persists side-effect tasks in PostgreSQL so their outcomes
// survive restarts and stay visible to operational monitoring.
type TaskRepository struct {
	pool database.DBTX
}

// NewTaskRepository creates a new PostgreSQL-backed task repository.
func NewTaskRepository(pool database.DBTX) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// Create inserts a new queued task.
func (r *TaskRepository) Create(ctx context.Context, task *domain.SideEffectTask) error {
	query := `
		INSERT INTO side_effect_tasks (id, order_id, type, payload, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.OrderID,
		task.Type,
		task.Payload,
		task.Status,
		task.Attempts,
		task.LastError,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update records the latest dispatch outcome for a task.
func (r *TaskRepository) Update(ctx context.Context, task *domain.SideEffectTask) error {
	query := `
		UPDATE side_effect_tasks
		SET status = $2, attempts = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, task.ID, task.Status, task.Attempts, task.LastError)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("task", task.ID)
	}
	return nil
}

// ListQueued returns tasks awaiting dispatch, oldest first, so a restart can
// resume work that was queued but never attempted.
func (r *TaskRepository) ListQueued(ctx context.Context, limit int) ([]*domain.SideEffectTask, error) {
	query := `
		SELECT id, order_id, type, payload, status, attempts, last_error, created_at, updated_at
		FROM side_effect_tasks
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, domain.TaskQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.SideEffectTask
	for rows.Next() {
		var t domain.SideEffectTask
		if err := rows.Scan(
			&t.ID,
			&t.OrderID,
			&t.Type,
			&t.Payload,
			&t.Status,
			&t.Attempts,
			&t.LastError,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}
