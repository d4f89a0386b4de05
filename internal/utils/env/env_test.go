package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	envutil "github.com/slok/wrun/internal/utils/env"
)

func TestParseSpecs(t *testing.T) {
	tests := map[string]struct {
		specs  []string
		setEnv map[string]string
		expEnv map[string]string
		expErr bool
	}{
		"KEY=VALUE specs should parse into a map": {
			specs:  []string{"FOO=bar", "BAZ=qux"},
			expEnv: map[string]string{"FOO": "bar", "BAZ": "qux"},
		},

		"An empty value should be allowed": {
			specs:  []string{"FOO="},
			expEnv: map[string]string{"FOO": ""},
		},

		"A value containing equals signs should keep everything after the first": {
			specs:  []string{"FOO=a=b=c"},
			expEnv: map[string]string{"FOO": "a=b=c"},
		},

		"A bare key should take its value from the process environment": {
			specs:  []string{"WRUN_TEST_PASSTHROUGH"},
			setEnv: map[string]string{"WRUN_TEST_PASSTHROUGH": "inherited"},
			expEnv: map[string]string{"WRUN_TEST_PASSTHROUGH": "inherited"},
		},

		"A bare key missing from the process environment should fail": {
			specs:  []string{"WRUN_TEST_DEFINITELY_NOT_SET"},
			expErr: true,
		},

		"An empty spec should fail": {
			specs:  []string{""},
			expErr: true,
		},

		"An invalid key should fail": {
			specs:  []string{"1NVALID=x"},
			expErr: true,
		},

		"No specs should produce an empty map": {
			specs:  nil,
			expEnv: map[string]string{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			for k, v := range test.setEnv {
				t.Setenv(k, v)
			}

			env, err := envutil.ParseSpecs(test.specs)

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
				assert.Equal(test.expEnv, env)
			}
		})
	}
}

func TestMergeMaps(t *testing.T) {
	assert := assert.New(t)

	base := map[string]string{"A": "1", "B": "2"}
	override := map[string]string{"B": "3", "C": "4"}

	merged := envutil.MergeMaps(base, override)

	assert.Equal(map[string]string{"A": "1", "B": "3", "C": "4"}, merged)
	// Inputs stay untouched.
	assert.Equal(map[string]string{"A": "1", "B": "2"}, base)
	assert.Equal(map[string]string{"B": "3", "C": "4"}, override)
}

func TestToSlice(t *testing.T) {
	assert := assert.New(t)

	env := map[string]string{"ZZ": "last", "AA": "first", "MM": "middle"}

	assert.Equal([]string{"AA=first", "MM=middle", "ZZ=last"}, envutil.ToSlice(env))
	assert.Empty(envutil.ToSlice(nil))
}
