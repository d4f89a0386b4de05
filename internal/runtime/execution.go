package runtime

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// Execution is the live handle returned by Runtime.Exec: a writable input
// stream, two readable output streams and an eventual exit code.
//
// The caller owns the lifecycle: all three streams must be drained or closed
// or the process file descriptors leak. Closing Stdin signals EOF to the
// child process.
type Execution struct {
	// Stdin is the process input. Close it to signal EOF.
	Stdin io.WriteCloser
	// Stdout is the process standard output, observed in emission order.
	Stdout io.Reader
	// Stderr is the process standard error. It has no ordering relationship
	// to Stdout.
	Stderr io.Reader

	done     chan struct{}
	exitCode int
	waitErr  error
}

// NewExecution creates an execution handle around the given process streams.
// The backend completes it exactly once when the process exits.
func NewExecution(stdin io.WriteCloser, stdout, stderr io.Reader) *Execution {
	return &Execution{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		done:   make(chan struct{}),
	}
}

// Complete resolves the exit-code future. Backends call it exactly once.
func (e *Execution) Complete(exitCode int, err error) {
	e.exitCode = exitCode
	e.waitErr = err
	close(e.done)
}

// Wait blocks until the process exits or ctx is done, and returns the exit code.
func (e *Execution) Wait(ctx context.Context) (int, error) {
	select {
	case <-e.done:
		return e.exitCode, e.waitErr
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// CaptureResult is the fully drained outcome of an execution.
type CaptureResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Capture closes the execution input, drains stdout and stderr concurrently,
// joins both drains and waits for the exit code. Drain errors are merged into
// the returned error instead of being lost in background goroutines.
func Capture(ctx context.Context, e *Execution) (*CaptureResult, error) {
	if e.Stdin != nil {
		_ = e.Stdin.Close()
	}

	var stdout, stderr []byte
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stdout, err = io.ReadAll(e.Stdout)
		return err
	})
	g.Go(func() error {
		var err error
		stderr, err = io.ReadAll(e.Stderr)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	exitCode, err := e.Wait(ctx)
	if err != nil {
		return nil, err
	}

	return &CaptureResult{
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		ExitCode: exitCode,
	}, nil
}
