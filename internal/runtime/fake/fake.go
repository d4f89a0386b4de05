// Package fake provides an in-memory implementation of the runtime contract
// for tests: a map-backed filesystem and scriptable command execution, without
// spawning real processes.
package fake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
)

// ExecHandler produces the scripted result of a command execution.
type ExecHandler func(command string, opts model.ExecOptions) (stdout, stderr string, exitCode int)

// Config is the configuration for the fake runtime.
type Config struct {
	// Kind is the kind tag the fake reports (default: local).
	Kind model.RuntimeKind
	// Home is the home directory the fake resolves "~" to (default: /home/fake).
	Home string
	// OnExec handles command executions (default: empty output, exit 0).
	OnExec ExecHandler
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Kind == "" {
		c.Kind = model.RuntimeKindLocal
	}
	if c.Home == "" {
		c.Home = "/home/fake"
	}
	if c.OnExec == nil {
		c.OnExec = func(string, model.ExecOptions) (string, string, int) { return "", "", 0 }
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Runtime is a fake implementation of the runtime.Runtime contract.
type Runtime struct {
	kind   model.RuntimeKind
	home   string
	onExec ExecHandler
	logger log.Logger

	mu       sync.RWMutex
	files    map[string][]byte
	modTimes map[string]time.Time
	dirs     map[string]bool
}

// NewRuntime creates a new fake runtime.
func NewRuntime(cfg Config) (*Runtime, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runtime{
		kind:     cfg.Kind,
		home:     cfg.Home,
		onExec:   cfg.OnExec,
		logger:   cfg.Logger,
		files:    map[string][]byte{},
		modTimes: map[string]time.Time{},
		dirs:     map[string]bool{},
	}, nil
}

// Kind returns the configured kind tag.
func (r *Runtime) Kind() model.RuntimeKind { return r.kind }

// AddDir registers a directory on the fake filesystem.
func (r *Runtime) AddDir(dirPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs[path.Clean(dirPath)] = true
}

// Files returns a snapshot copy of the fake filesystem contents.
func (r *Runtime) Files() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]string, len(r.files))
	for k, v := range r.files {
		snapshot[k] = string(v)
	}

	return snapshot
}

// Exec runs the scripted exec handler and returns an already-finished stream.
func (r *Runtime) Exec(ctx context.Context, command string, opts model.ExecOptions) (*runtime.Execution, error) {
	stdout, stderr, exitCode := r.onExec(command, opts)

	execution := runtime.NewExecution(
		nopWriteCloser{io.Discard},
		strings.NewReader(stdout),
		strings.NewReader(stderr),
	)
	execution.Complete(exitCode, nil)

	return execution, nil
}

// Stat returns file information from the fake filesystem.
func (r *Runtime) Stat(ctx context.Context, filePath string) (*model.FileStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath = path.Clean(filePath)
	if r.dirs[filePath] {
		return &model.FileStat{IsDir: true, ModTime: time.Now()}, nil
	}

	data, ok := r.files[filePath]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filePath, model.ErrNotFound)
	}

	return &model.FileStat{
		SizeBytes: int64(len(data)),
		ModTime:   r.modTimes[filePath],
	}, nil
}

// ReadFile reads a file from the fake filesystem.
func (r *Runtime) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.files[path.Clean(filePath)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filePath, model.ErrNotFound)
	}

	return bytes.Clone(data), nil
}

// WriteFile writes a file on the fake filesystem.
func (r *Runtime) WriteFile(ctx context.Context, filePath string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	filePath = path.Clean(filePath)
	r.files[filePath] = bytes.Clone(data)
	r.modTimes[filePath] = time.Now()

	return nil
}

// NormalizePath resolves with POSIX semantics.
func (r *Runtime) NormalizePath(filePath, base string) string {
	filePath = runtime.ExpandPosixHome(filePath, r.home)
	return runtime.NormalizePosixPath(filePath, base)
}

// HomeDir returns the configured fake home.
func (r *Runtime) HomeDir(ctx context.Context) (string, error) { return r.home, nil }

// Close is a no-op.
func (r *Runtime) Close() error { return nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
