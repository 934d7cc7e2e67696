package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/iacore/internal/utils/file"
)

func TestWriteAtomic(t *testing.T) {
	tests := map[string]struct {
		existing *string
		data     string
	}{
		"Writing a new file in a missing directory should create it.": {
			data: `[]`,
		},

		"Writing over an existing file should replace its content.": {
			existing: ptr(`[{"id":"old"}]`),
			data:     `[{"id":"new"}]`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			dir := t.TempDir()
			path := filepath.Join(dir, "nested", "tasks.json")
			if test.existing != nil {
				require.NoError(os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(os.WriteFile(path, []byte(*test.existing), 0o644))
			}

			err := file.WriteAtomic(path, []byte(test.data), 0o600)
			require.NoError(err)

			got, err := os.ReadFile(path)
			require.NoError(err)
			assert.Equal(test.data, string(got))

			// No temp files left behind.
			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(err)
			assert.Len(entries, 1)
		})
	}
}

func ptr[T any](v T) *T { return &v }
