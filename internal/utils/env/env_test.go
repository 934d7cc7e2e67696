package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/iacore/internal/utils/env"
)

func TestParseSpecs(t *testing.T) {
	t.Setenv("IACORE_TEST_FROM_ENV", "from-env")

	tests := map[string]struct {
		specs  []string
		exp    map[string]string
		expErr bool
	}{
		"Key value specs should be parsed.": {
			specs: []string{"A=1", "B=x=y", "C="},
			exp:   map[string]string{"A": "1", "B": "x=y", "C": ""},
		},

		"A bare key should be read from the environment.": {
			specs: []string{"IACORE_TEST_FROM_ENV"},
			exp:   map[string]string{"IACORE_TEST_FROM_ENV": "from-env"},
		},

		"A bare key missing from the environment should fail.": {
			specs:  []string{"IACORE_TEST_MISSING_VAR"},
			expErr: true,
		},

		"An invalid key should fail.": {
			specs:  []string{"1BAD=x"},
			expErr: true,
		},

		"An empty spec should fail.": {
			specs:  []string{""},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			got, err := env.ParseSpecs(test.specs)

			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.exp, got)
			}
		})
	}
}

func TestMergeAndList(t *testing.T) {
	merged := env.MergeMaps(map[string]string{"B": "base", "A": "1"}, map[string]string{"B": "override"})

	assert.Equal(t, []string{"A=1", "B=override"}, env.List(merged))
	assert.Nil(t, env.List(nil))
}
