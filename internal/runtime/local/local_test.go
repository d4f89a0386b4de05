package local_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	"github.com/slok/wrun/internal/runtime/local"
)

func newTestRuntime(t *testing.T) *local.Runtime {
	t.Helper()

	rt, err := local.NewRuntime(local.Config{})
	require.NoError(t, err)

	return rt
}

func TestExec(t *testing.T) {
	tests := map[string]struct {
		command     string
		opts        model.ExecOptions
		expStdout   string
		expStderr   string
		expExitCode int
	}{
		"A command should produce its stdout": {
			command:   "printf hello",
			expStdout: "hello",
		},

		"A command should produce its stderr separately": {
			command:   "printf oops >&2",
			expStderr: "oops",
		},

		"A failing command should report its exit code": {
			command:     "exit 3",
			expExitCode: 3,
		},

		"Extra environment variables should reach the command": {
			command:   "printf '%s' \"$WRUN_TEST_VAR\"",
			opts:      model.ExecOptions{Env: map[string]string{"WRUN_TEST_VAR": "injected"}},
			expStdout: "injected",
		},

		"Shell features like pipes should work": {
			command:   "printf 'a\nb\nc\n' | wc -l | tr -d ' '",
			expStdout: "3\n",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			rt := newTestRuntime(t)

			execution, err := rt.Exec(context.Background(), test.command, test.opts)
			require.NoError(err)

			result, err := runtime.Capture(context.Background(), execution)
			require.NoError(err)

			assert.Equal(test.expStdout, result.Stdout)
			assert.Equal(test.expStderr, result.Stderr)
			assert.Equal(test.expExitCode, result.ExitCode)
		})
	}
}

func TestExecWorkingDir(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt := newTestRuntime(t)
	dir := t.TempDir()

	execution, err := rt.Exec(context.Background(), "pwd", model.ExecOptions{WorkingDir: dir})
	require.NoError(err)

	result, err := runtime.Capture(context.Background(), execution)
	require.NoError(err)

	// macOS tempdirs resolve through symlinks, compare resolved paths.
	expDir, err := filepath.EvalSymlinks(dir)
	require.NoError(err)
	gotDir, err := filepath.EvalSymlinks(result.Stdout[:len(result.Stdout)-1])
	require.NoError(err)
	assert.Equal(expDir, gotDir)
}

func TestExecMissingWorkingDir(t *testing.T) {
	assert := assert.New(t)

	rt := newTestRuntime(t)

	_, err := rt.Exec(context.Background(), "true", model.ExecOptions{WorkingDir: "/definitely/not/here"})
	assert.ErrorIs(err, model.ErrNotFound)
}

func TestExecStdin(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt := newTestRuntime(t)

	execution, err := rt.Exec(context.Background(), "cat", model.ExecOptions{})
	require.NoError(err)

	_, err = io.WriteString(execution.Stdin, "through the pipe")
	require.NoError(err)
	require.NoError(execution.Stdin.Close())

	stdout, err := io.ReadAll(execution.Stdout)
	require.NoError(err)

	exitCode, err := execution.Wait(context.Background())
	require.NoError(err)

	assert.Equal("through the pipe", string(stdout))
	assert.Equal(0, exitCode)
}

func TestExecTimeout(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt := newTestRuntime(t)

	start := time.Now()
	execution, err := rt.Exec(context.Background(), "sleep 10", model.ExecOptions{TimeoutSeconds: 1})
	require.NoError(err)

	require.NoError(execution.Stdin.Close())
	_, _ = io.ReadAll(execution.Stdout)

	_, err = execution.Wait(context.Background())
	assert.ErrorIs(err, context.DeadlineExceeded)
	assert.Less(time.Since(start), 5*time.Second)
}

func TestExecContextCancel(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt := newTestRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	execution, err := rt.Exec(ctx, "sleep 10", model.ExecOptions{})
	require.NoError(err)

	cancel()

	require.NoError(execution.Stdin.Close())
	_, _ = io.ReadAll(execution.Stdout)

	_, err = execution.Wait(context.Background())
	assert.ErrorIs(err, context.Canceled)
}

func TestFileOperations(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt := newTestRuntime(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "file.txt")

	// Write creates parent directories.
	require.NoError(rt.WriteFile(ctx, path, []byte("content")))

	data, err := rt.ReadFile(ctx, path)
	require.NoError(err)
	assert.Equal("content", string(data))

	stat, err := rt.Stat(ctx, path)
	require.NoError(err)
	assert.Equal(int64(len("content")), stat.SizeBytes)
	assert.False(stat.IsDir)
	assert.WithinDuration(time.Now(), stat.ModTime, time.Minute)

	stat, err = rt.Stat(ctx, filepath.Dir(path))
	require.NoError(err)
	assert.True(stat.IsDir)
}

func TestFileOperationsNotFound(t *testing.T) {
	assert := assert.New(t)

	rt := newTestRuntime(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "missing")

	_, err := rt.ReadFile(ctx, path)
	assert.ErrorIs(err, model.ErrNotFound)

	_, err = rt.Stat(ctx, path)
	assert.ErrorIs(err, model.ErrNotFound)
}

func TestNormalizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := map[string]struct {
		path    string
		base    string
		expPath string
	}{
		"A relative path should resolve against the base": {
			path:    "src/main.go",
			base:    "/project",
			expPath: filepath.Join("/project", "src", "main.go"),
		},

		"An absolute path should ignore the base": {
			path:    "/etc/hosts",
			base:    "/project",
			expPath: "/etc/hosts",
		},

		"An empty path should resolve to the base": {
			path:    "",
			base:    "/project",
			expPath: "/project",
		},

		"A tilde path should expand to the user home": {
			path:    "~/notes.txt",
			base:    "/project",
			expPath: filepath.Join(home, "notes.txt"),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			rt := newTestRuntime(t)

			got := rt.NormalizePath(test.path, test.base)
			assert.Equal(test.expPath, got)

			// Normalization is idempotent.
			assert.Equal(got, rt.NormalizePath(got, test.base))
		})
	}
}

func TestHomeDir(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	rt := newTestRuntime(t)

	home, err := rt.HomeDir(context.Background())
	require.NoError(err)
	assert.NotEmpty(home)
}
