package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/wrun/internal/runtime"
)

func TestNormalizePosixPath(t *testing.T) {
	tests := map[string]struct {
		path    string
		base    string
		expPath string
	}{
		"A relative path should resolve against the base": {
			path:    "src/main.go",
			base:    "/project",
			expPath: "/project/src/main.go",
		},

		"An absolute path should ignore the base": {
			path:    "/etc/hosts",
			base:    "/project",
			expPath: "/etc/hosts",
		},

		"An empty path should resolve to the base": {
			path:    "",
			base:    "/project/",
			expPath: "/project",
		},

		"Dot segments should collapse": {
			path:    "./a/../b/c",
			base:    "/project",
			expPath: "/project/b/c",
		},

		"Parent traversal should resolve lexically": {
			path:    "../outside",
			base:    "/project/sub",
			expPath: "/project/outside",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			got := runtime.NormalizePosixPath(test.path, test.base)
			assert.Equal(test.expPath, got)

			// Normalization is idempotent.
			assert.Equal(got, runtime.NormalizePosixPath(got, test.base))
		})
	}
}

func TestExpandPosixHome(t *testing.T) {
	tests := map[string]struct {
		path    string
		home    string
		expPath string
	}{
		"A bare tilde should expand to the home dir": {
			path:    "~",
			home:    "/home/dev",
			expPath: "/home/dev",
		},

		"A tilde prefix should expand": {
			path:    "~/src/app",
			home:    "/home/dev",
			expPath: "/home/dev/src/app",
		},

		"A tilde in the middle of a path should not expand": {
			path:    "/data/~backup",
			home:    "/home/dev",
			expPath: "/data/~backup",
		},

		"A tilde-user form should not expand": {
			path:    "~other/file",
			home:    "/home/dev",
			expPath: "~other/file",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expPath, runtime.ExpandPosixHome(test.path, test.home))
		})
	}
}
