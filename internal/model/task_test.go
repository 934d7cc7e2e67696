package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/iacore/internal/model"
)

func TestTaskValidate(t *testing.T) {
	createdAt := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		task   model.Task
		expErr bool
	}{
		"A valid task should not fail": {
			task: model.Task{ID: "t1", Description: "list files", Status: model.TaskStatusPending, CreatedAt: createdAt},
		},

		"Missing ID should fail": {
			task:   model.Task{Description: "list files", Status: model.TaskStatusPending, CreatedAt: createdAt},
			expErr: true,
		},

		"Blank description should fail": {
			task:   model.Task{ID: "t1", Description: "   ", Status: model.TaskStatusPending, CreatedAt: createdAt},
			expErr: true,
		},

		"Unknown status should fail": {
			task:   model.Task{ID: "t1", Description: "list files", Status: "done", CreatedAt: createdAt},
			expErr: true,
		},

		"Missing creation time should fail": {
			task:   model.Task{ID: "t1", Description: "list files", Status: model.TaskStatusPending},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			err := test.task.Validate()

			if test.expErr {
				assert.Error(err)
				assert.True(errors.Is(err, model.ErrNotValid))
			} else {
				assert.NoError(err)
			}
		})
	}
}

func TestTaskTransition(t *testing.T) {
	now := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		from   model.TaskStatus
		to     model.TaskStatus
		expErr bool
	}{
		"Pending to running should be allowed":     {from: model.TaskStatusPending, to: model.TaskStatusRunning},
		"Running to success should be allowed":     {from: model.TaskStatusRunning, to: model.TaskStatusSuccess},
		"Running to failed should be allowed":      {from: model.TaskStatusRunning, to: model.TaskStatusFailed},
		"Pending to success should not be allowed": {from: model.TaskStatusPending, to: model.TaskStatusSuccess, expErr: true},
		"Success should never be revisited":        {from: model.TaskStatusSuccess, to: model.TaskStatusRunning, expErr: true},
		"Failed should never be revisited":         {from: model.TaskStatusFailed, to: model.TaskStatusPending, expErr: true},
		"Running to pending should not be allowed": {from: model.TaskStatusRunning, to: model.TaskStatusPending, expErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			task := model.Task{ID: "t1", Status: test.from}
			err := task.Transition(test.to, now)

			if test.expErr {
				assert.Error(err)
				assert.Equal(test.from, task.Status)
			} else {
				assert.NoError(err)
				assert.Equal(test.to, task.Status)
				assert.Equal(now, task.UpdatedAt)
			}
		})
	}
}

func TestWorkflowResolution(t *testing.T) {
	steps := model.NewWorkflow([]string{"analyze_commit", "does_not_exist", "analyze_context"})

	assert.Equal(t, []model.WorkflowStep{
		{Name: "analyze_commit", Action: model.WorkflowActionAnalyzeCommit},
		{Name: "does_not_exist", Action: model.WorkflowActionUnknown},
		{Name: "analyze_context", Action: model.WorkflowActionAnalyzeContext},
	}, steps)
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]struct {
		config func() model.Config
		expErr bool
	}{
		"Default config should be valid": {
			config: model.DefaultConfig,
		},

		"Unknown provider should fail": {
			config: func() model.Config {
				c := model.DefaultConfig()
				c.LLM.Provider = "unknown"
				return c
			},
			expErr: true,
		},

		"Unknown sandbox should fail": {
			config: func() model.Config {
				c := model.DefaultConfig()
				c.Executor.Sandbox = "chroot"
				return c
			},
			expErr: true,
		},

		"Unknown storage backend should fail": {
			config: func() model.Config {
				c := model.DefaultConfig()
				c.Storage.Backend = "redis"
				return c
			},
			expErr: true,
		},

		"Zero rate limit should fail": {
			config: func() model.Config {
				c := model.DefaultConfig()
				c.LLM.RateLimit = 0
				return c
			},
			expErr: true,
		},

		"Zero executor timeout should fail": {
			config: func() model.Config {
				c := model.DefaultConfig()
				c.Executor.Timeout = 0
				return c
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			err := test.config().Validate()

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
		})
	}
}
