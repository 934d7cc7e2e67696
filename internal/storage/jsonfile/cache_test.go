package jsonfile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/storage/jsonfile"
)

func TestCacheRepository(t *testing.T) {
	tests := map[string]struct {
		set    []model.CacheEntry
		key    string
		exp    *model.CacheEntry
		expErr error
	}{
		"A missing entry should return not found.": {
			key:    "abc",
			expErr: model.ErrNotFound,
		},

		"A stored entry should be returned.": {
			set: []model.CacheEntry{
				{Key: "abc", Prompt: "p", Response: "r", Model: "m", CreatedAt: t0},
			},
			key: "abc",
			exp: &model.CacheEntry{Key: "abc", Prompt: "p", Response: "r", Model: "m", CreatedAt: t0},
		},

		"The last stored entry for a key should win.": {
			set: []model.CacheEntry{
				{Key: "abc", Response: "r1", CreatedAt: t0},
				{Key: "abc", Response: "r2", CreatedAt: t0.Add(time.Hour)},
			},
			key: "abc",
			exp: &model.CacheEntry{Key: "abc", Response: "r2", CreatedAt: t0.Add(time.Hour)},
		},

		"A key with path separators should be rejected.": {
			key:    "../etc/passwd",
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			repo, err := jsonfile.NewCacheRepository(jsonfile.CacheRepositoryConfig{Dir: t.TempDir(), Logger: log.Noop})
			require.NoError(err)

			for _, e := range test.set {
				require.NoError(repo.SetCacheEntry(ctx, e))
			}

			got, err := repo.GetCacheEntry(ctx, test.key)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(err)
			assert.Equal(test.exp.Response, got.Response)
			assert.Equal(test.exp.Prompt, got.Prompt)
			assert.Equal(test.exp.Model, got.Model)
			assert.True(test.exp.CreatedAt.Equal(got.CreatedAt))
		})
	}
}
