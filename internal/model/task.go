package model

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
)

// IsTerminal returns true when the status can't change anymore.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed
}

// CanTransitionTo returns true if the task lifecycle allows moving from s to next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning
	case TaskStatusRunning:
		return next == TaskStatusSuccess || next == TaskStatusFailed
	default:
		return false
	}
}

// Task is a unit of work described in natural language that is executed as a
// sequence of shell commands.
type Task struct {
	ID          string
	Description string
	Status      TaskStatus
	AutoExecute bool
	// Error is the summary of the unrecovered failures of the task (if any).
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the task.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}

	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("description is required: %w", ErrNotValid)
	}

	switch t.Status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSuccess, TaskStatusFailed:
	default:
		return fmt.Errorf("unknown status %q: %w", t.Status, ErrNotValid)
	}

	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created at is required: %w", ErrNotValid)
	}

	return nil
}

// Transition moves the task to the next status, terminal states are never revisited.
func (t *Task) Transition(next TaskStatus, at time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("task %s can't transition from %s to %s: %w", t.ID, t.Status, next, ErrNotValid)
	}

	t.Status = next
	t.UpdatedAt = at.UTC()

	return nil
}
