package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/iacore/internal/model"
)

const taskColumns = `id, description, status, auto_execute, error, created_at, updated_at`

// CreateTask appends a task at the end of the queue.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	var updatedAt *int64
	if !t.UpdatedAt.IsZero() {
		u := toUnix(t.UpdatedAt)
		updatedAt = &u
	}

	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.Description,
		t.Status,
		t.AutoExecute,
		t.Error,
		toUnix(t.CreatedAt),
		updatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.") {
			return fmt.Errorf("task %s: %w", t.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &t, nil
}

// ListTasks returns all the tasks in queue order.
func (r *Repository) ListTasks(ctx context.Context) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// NextPendingTask returns the oldest pending task, or nil if there is none.
func (r *Repository) NextPendingTask(ctx context.Context) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = ? ORDER BY seq ASC LIMIT 1`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, model.TaskStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No pending tasks.
		}
		return nil, fmt.Errorf("could not query next task: %w", err)
	}

	return &t, nil
}

// UpdateTask replaces the stored state of a task, the queue position is kept.
func (r *Repository) UpdateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	query := `
		UPDATE tasks
		SET
			description = ?,
			status = ?,
			auto_execute = ?,
			error = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		t.Description,
		t.Status,
		t.AutoExecute,
		t.Error,
		toUnix(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated task %s to %s", t.ID, t.Status)
	return nil
}

func scanTask(s scanner) (model.Task, error) {
	var t model.Task
	var createdAt int64
	var updatedAt sql.NullInt64

	err := s.Scan(
		&t.ID,
		&t.Description,
		&t.Status,
		&t.AutoExecute,
		&t.Error,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	t.CreatedAt = fromUnix(createdAt)
	if updatedAt.Valid {
		t.UpdatedAt = fromUnix(updatedAt.Int64)
	}

	return t, nil
}
