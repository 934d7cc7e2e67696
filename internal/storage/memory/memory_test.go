package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/storage/memory"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func taskFixture(id string, status model.TaskStatus) model.Task {
	return model.Task{ID: id, Description: "desc " + id, Status: status, CreatedAt: t0}
}

func TestRepositoryNextPendingTask(t *testing.T) {
	tests := map[string]struct {
		tasks []model.Task
		expID string
	}{
		"An empty queue should return nothing.": {},

		"A queue without pending tasks should return nothing.": {
			tasks: []model.Task{
				taskFixture("a", model.TaskStatusSuccess),
				taskFixture("b", model.TaskStatusFailed),
			},
		},

		"The first pending task in queue order should be returned.": {
			tasks: []model.Task{
				taskFixture("c", model.TaskStatusSuccess),
				taskFixture("b", model.TaskStatusPending),
				taskFixture("a", model.TaskStatusPending),
			},
			expID: "b",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
			require.NoError(err)
			for _, tk := range test.tasks {
				require.NoError(repo.CreateTask(ctx, tk))
			}

			got, err := repo.NextPendingTask(ctx)
			require.NoError(err)
			if test.expID == "" {
				assert.Nil(got)
				return
			}
			require.NotNil(got)
			assert.Equal(test.expID, got.ID)
		})
	}
}

func TestRepositoryTaskCopies(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(err)
	require.NoError(repo.CreateTask(ctx, taskFixture("a", model.TaskStatusPending)))

	got, err := repo.GetTask(ctx, "a")
	require.NoError(err)
	got.Status = model.TaskStatusFailed

	// Mutating the returned task doesn't change the stored one.
	stored, err := repo.GetTask(ctx, "a")
	require.NoError(err)
	assert.Equal(t, model.TaskStatusPending, stored.Status)

	assert.ErrorIs(t, repo.CreateTask(ctx, taskFixture("a", model.TaskStatusPending)), model.ErrAlreadyExists)
	assert.ErrorIs(t, repo.UpdateTask(ctx, taskFixture("z", model.TaskStatusPending)), model.ErrNotFound)
}

func TestRepositoryCache(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(err)

	_, err = repo.GetCacheEntry(ctx, "k")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(repo.SetCacheEntry(ctx, model.CacheEntry{Key: "k", Response: "r", CreatedAt: t0}))
	got, err := repo.GetCacheEntry(ctx, "k")
	require.NoError(err)
	assert.Equal(t, "r", got.Response)
}
