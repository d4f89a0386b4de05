// Package runtime provides the capability contract that every execution
// backend (local, ssh, container) implements, and the live execution stream
// handle returned by command execution.
package runtime

import (
	"context"

	"github.com/slok/wrun/internal/model"
)

// Runtime is the capability contract consumed by every tool. A backend makes
// "run a command" and "read/write a file" behave identically across execution
// substrates. Callers should switch on Kind only when truly backend-specific
// behavior is unavoidable.
type Runtime interface {
	// Kind returns the backend kind tag.
	Kind() model.RuntimeKind

	// Exec runs a shell command and returns its live execution stream. Spawn
	// failures wrap model.ErrSpawn. Cancelling ctx (or hitting the options
	// timeout) kills the underlying process and unblocks pending reads.
	Exec(ctx context.Context, command string, opts model.ExecOptions) (*Execution, error)

	// Stat returns file information for path. Wraps model.ErrNotFound or
	// model.ErrPermissionDenied.
	Stat(ctx context.Context, path string) (*model.FileStat, error)

	// ReadFile reads the whole file at path. Same error taxonomy as Stat.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile writes data to path, creating it if needed. Same error
	// taxonomy as Stat.
	WriteFile(ctx context.Context, path string, data []byte) error

	// NormalizePath resolves path against base using the target environment's
	// separator and root conventions, not the calling process's. It is
	// idempotent.
	NormalizePath(path, base string) string

	// HomeDir resolves "~" for the target environment: the OS home for local,
	// the remote shell's home for ssh, the container user's home for container.
	HomeDir(ctx context.Context) (string, error)

	// Close releases backend resources (e.g. the pooled SSH connection).
	Close() error
}
