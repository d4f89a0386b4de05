// Package local implements the runtime capability contract by spawning
// processes directly on the controlling machine.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	envutil "github.com/slok/wrun/internal/utils/env"
	fileutil "github.com/slok/wrun/internal/utils/file"
)

// DefaultShell is the shell used to interpret commands.
const DefaultShell = "/bin/sh"

// Config is the configuration for the local runtime.
type Config struct {
	// Shell is the shell binary used to run commands (default: /bin/sh).
	Shell string
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Shell == "" {
		c.Shell = DefaultShell
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runtime.Local"})

	return nil
}

// Runtime is the local implementation of the runtime.Runtime contract.
type Runtime struct {
	shell  string
	logger log.Logger
}

// NewRuntime creates a new local runtime.
func NewRuntime(cfg Config) (*Runtime, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runtime{
		shell:  cfg.Shell,
		logger: cfg.Logger,
	}, nil
}

// Kind returns the backend kind tag.
func (r *Runtime) Kind() model.RuntimeKind { return model.RuntimeKindLocal }

// Exec runs a shell command as a direct child process.
func (r *Runtime) Exec(ctx context.Context, command string, opts model.ExecOptions) (*runtime.Execution, error) {
	// A missing cwd produces a confusing low-level spawn error on some
	// platforms, validate it upfront instead.
	if opts.WorkingDir != "" {
		info, err := os.Stat(opts.WorkingDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("working directory %q does not exist: %w", opts.WorkingDir, model.ErrNotFound)
			}
			return nil, fmt.Errorf("could not stat working directory %q: %w", opts.WorkingDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("working directory %q is not a directory: %w", opts.WorkingDir, model.ErrNotValid)
		}
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if opts.TimeoutSeconds > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutSeconds)*time.Second)
	}

	cmd := exec.CommandContext(execCtx, r.shell, "-c", command)
	cmd.Dir = opts.WorkingDir
	cmd.Env = append(os.Environ(), envutil.ToSlice(opts.Env)...)

	// Plain os pipes instead of exec's lazily-closed ones: the caller drains
	// the streams after this call returns, which exec.Cmd pipe helpers don't
	// allow without racing Wait against the reads.
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("could not create stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("could not create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("could not create stderr pipe: %w", err)
	}

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		if cancel != nil {
			cancel()
		}
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("could not start command: %v: %w", err, model.ErrSpawn)
	}

	// The child owns its copies now, close ours so readers see EOF on exit.
	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	execution := runtime.NewExecution(stdinW, stdoutR, stderrR)

	go func() {
		err := cmd.Wait()
		if cancel != nil {
			cancel()
		}

		exitCode := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
				err = nil
			} else {
				exitCode = -1
			}
		}
		// Prefer the cancellation cause over a generic kill error.
		if ctxErr := execCtx.Err(); ctxErr != nil {
			err = ctxErr
		}

		execution.Complete(exitCode, err)
	}()

	return execution, nil
}

// Stat returns file information for path.
func (r *Runtime) Stat(ctx context.Context, path string) (*model.FileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, classifyFSError(path, err)
	}

	return &model.FileStat{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
		IsDir:     info.IsDir(),
	}, nil
}

// ReadFile reads the whole file at path.
func (r *Runtime) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyFSError(path, err)
	}

	return data, nil
}

// WriteFile writes data to path atomically (temp file + rename).
func (r *Runtime) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := fileutil.AtomicWrite(path, data, 0o644); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%s: %w", path, model.ErrPermissionDenied)
		}
		return err
	}

	return nil
}

// NormalizePath resolves path against base using the local OS path semantics.
func (r *Runtime) NormalizePath(path, base string) string {
	if path == "" {
		return filepath.Clean(base)
	}
	if home := homedir.HomeDir(); home != "" {
		if path == "~" {
			path = home
		} else if strings.HasPrefix(path, "~/") {
			path = filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(base, path)
}

// HomeDir returns the OS home directory of the current user.
func (r *Runtime) HomeDir(ctx context.Context) (string, error) {
	home := homedir.HomeDir()
	if home == "" {
		return "", fmt.Errorf("home directory: %w", model.ErrNotFound)
	}

	return home, nil
}

// Close is a no-op for the local runtime.
func (r *Runtime) Close() error { return nil }

func classifyFSError(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%s: %w", path, model.ErrNotFound)
	case os.IsPermission(err):
		return fmt.Errorf("%s: %w", path, model.ErrPermissionDenied)
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}
