// Package container implements the runtime capability contract by executing
// into a running container through the Docker API.
package container

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	envutil "github.com/slok/wrun/internal/utils/env"
)

// DockerClient is the interface for the Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ContainerStatPath(ctx context.Context, containerID, path string) (container.PathStat, error)
	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error
}

// Config is the configuration for the container runtime. Either ContainerName
// (exec into an already-running container) or Image (ensure a container for
// the image first) must be set.
type Config struct {
	ContainerName string
	Image         string
	// Client is the Docker client (optional, a default one is created from env).
	Client DockerClient
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.ContainerName == "" && c.Image == "" {
		return fmt.Errorf("container name or image is required")
	}
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runtime.Container"})

	return nil
}

// Runtime is the container implementation of the runtime.Runtime contract.
type Runtime struct {
	client DockerClient
	image  string
	logger log.Logger

	mu            sync.Mutex
	containerName string
	home          string
}

// NewRuntime creates a new container runtime.
func NewRuntime(cfg Config) (*Runtime, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runtime{
		client:        cfg.Client,
		image:         cfg.Image,
		containerName: cfg.ContainerName,
		logger:        cfg.Logger,
	}, nil
}

// Kind returns the backend kind tag.
func (r *Runtime) Kind() model.RuntimeKind { return model.RuntimeKindContainer }

// containerRef returns the target container name, provisioning one from the
// configured image on first use when no running container was named.
func (r *Runtime) containerRef(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.containerName != "" {
		return r.containerName, nil
	}

	name := fmt.Sprintf("wrun-%s", strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()))

	r.logger.Infof("Pulling image: %s", r.image)
	pullResp, err := r.client.ImagePull(ctx, r.image, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("could not pull image %s: %w", r.image, err)
	}
	// Consume the pull response to ensure it completes.
	_, _ = io.Copy(io.Discard, pullResp)
	pullResp.Close()

	r.logger.Infof("Creating container: %s", name)
	resp, err := r.client.ContainerCreate(ctx, &container.Config{
		Image: r.image,
		Cmd:   []string{"tail", "-f", "/dev/null"}, // Keep container running.
	}, &container.HostConfig{}, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("could not create container: %w", err)
	}

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("could not start container: %w", err)
	}

	r.containerName = name

	return name, nil
}

// Exec runs a shell command inside the container.
func (r *Runtime) Exec(ctx context.Context, command string, opts model.ExecOptions) (*runtime.Execution, error) {
	name, err := r.containerRef(ctx)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrSpawn)
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if opts.TimeoutSeconds > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutSeconds)*time.Second)
	}
	cleanup := func() {
		if cancel != nil {
			cancel()
		}
	}

	// Docker exec env is an overlay over the container's base environment,
	// which is exactly the merge semantics the contract requires.
	createResp, err := r.client.ContainerExecCreate(execCtx, name, container.ExecOptions{
		Cmd:          []string{"/bin/sh", "-c", command},
		WorkingDir:   opts.WorkingDir,
		Env:          envutil.ToSlice(opts.Env),
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		cleanup()
		return nil, classifyContainerError(name, fmt.Errorf("could not create exec: %v: %w", err, model.ErrSpawn))
	}

	hijack, err := r.client.ContainerExecAttach(execCtx, createResp.ID, container.ExecAttachOptions{})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("could not attach to exec: %v: %w", err, model.ErrSpawn)
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	execution := runtime.NewExecution(execWriteCloser{hijack: hijack}, stdoutR, stderrR)

	go func() {
		defer cleanup()

		// Demultiplex the hijacked stream into ordered stdout/stderr pipes.
		copyDone := make(chan error, 1)
		go func() {
			_, err := stdcopy.StdCopy(stdoutW, stderrW, hijack.Reader)
			copyDone <- err
		}()

		var copyErr error
		select {
		case <-execCtx.Done():
			// Closing the attach connection unblocks pending reads. The exec
			// process itself cannot be killed through the API.
			hijack.Close()
			<-copyDone
			stdoutW.Close()
			stderrW.Close()
			execution.Complete(-1, execCtx.Err())
			return
		case copyErr = <-copyDone:
		}

		stdoutW.CloseWithError(copyErr)
		stderrW.CloseWithError(copyErr)
		hijack.Close()

		exitCode, err := r.waitExit(execCtx, createResp.ID)
		execution.Complete(exitCode, err)
	}()

	return execution, nil
}

// waitExit polls the exec until it stops running and returns its exit code.
func (r *Runtime) waitExit(ctx context.Context, execID string) (int, error) {
	for {
		inspect, err := r.client.ContainerExecInspect(ctx, execID)
		if err != nil {
			return -1, fmt.Errorf("could not inspect exec: %w", err)
		}
		if !inspect.Running {
			return inspect.ExitCode, nil
		}

		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Stat returns file information from inside the container.
func (r *Runtime) Stat(ctx context.Context, filePath string) (*model.FileStat, error) {
	name, err := r.containerRef(ctx)
	if err != nil {
		return nil, err
	}

	stat, err := r.client.ContainerStatPath(ctx, name, filePath)
	if err != nil {
		return nil, classifyFSError(filePath, err)
	}

	return &model.FileStat{
		SizeBytes: stat.Size,
		ModTime:   stat.Mtime,
		IsDir:     stat.Mode.IsDir(),
	}, nil
}

// ReadFile reads a file from inside the container.
func (r *Runtime) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	name, err := r.containerRef(ctx)
	if err != nil {
		return nil, err
	}

	rc, stat, err := r.client.CopyFromContainer(ctx, name, filePath)
	if err != nil {
		return nil, classifyFSError(filePath, err)
	}
	defer rc.Close()

	if stat.Mode.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", filePath, model.ErrNotValid)
	}

	// The API hands back a tar stream with a single file entry.
	tr := tar.NewReader(rc)
	if _, err := tr.Next(); err != nil {
		return nil, fmt.Errorf("could not read archive for %s: %w", filePath, err)
	}

	data, err := io.ReadAll(tr)
	if err != nil {
		return nil, fmt.Errorf("could not read file %s: %w", filePath, err)
	}

	return data, nil
}

// WriteFile writes a file inside the container.
func (r *Runtime) WriteFile(ctx context.Context, filePath string, data []byte) error {
	name, err := r.containerRef(ctx)
	if err != nil {
		return err
	}

	dir := path.Dir(filePath)
	execution, err := r.Exec(ctx, fmt.Sprintf("mkdir -p %q", dir), model.ExecOptions{})
	if err != nil {
		return err
	}
	result, err := runtime.Capture(ctx, execution)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("could not create directory %s: %s: %w", dir, strings.TrimSpace(result.Stderr), model.ErrPermissionDenied)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name:    path.Base(filePath),
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}); err != nil {
		return fmt.Errorf("could not write archive header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("could not write archive content: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("could not close archive: %w", err)
	}

	if err := r.client.CopyToContainer(ctx, name, dir, &buf, container.CopyToContainerOptions{}); err != nil {
		return classifyFSError(filePath, err)
	}

	return nil
}

// NormalizePath resolves path against base using the container's POSIX
// conventions, never the host's filesystem APIs.
func (r *Runtime) NormalizePath(filePath, base string) string {
	r.mu.Lock()
	home := r.home
	r.mu.Unlock()
	if home != "" {
		filePath = runtime.ExpandPosixHome(filePath, home)
	}

	return runtime.NormalizePosixPath(filePath, base)
}

// HomeDir resolves the container user's home directory, which is container
// local and commonly not the host's home. Cached after first use.
func (r *Runtime) HomeDir(ctx context.Context) (string, error) {
	r.mu.Lock()
	home := r.home
	r.mu.Unlock()
	if home != "" {
		return home, nil
	}

	execution, err := r.Exec(ctx, `printf '%s' "$HOME"`, model.ExecOptions{})
	if err != nil {
		return "", err
	}

	result, err := runtime.Capture(ctx, execution)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 || result.Stdout == "" {
		return "", fmt.Errorf("could not resolve container home directory: %w", model.ErrNotFound)
	}

	home = strings.TrimSpace(result.Stdout)
	r.mu.Lock()
	r.home = home
	r.mu.Unlock()

	return home, nil
}

// Close is a no-op: the container lifecycle is not owned by this runtime.
func (r *Runtime) Close() error { return nil }

// execWriteCloser adapts the hijacked attach connection into the execution
// stdin contract: Close signals EOF to the exec process without tearing down
// the read side.
type execWriteCloser struct {
	hijack types.HijackedResponse
}

func (w execWriteCloser) Write(p []byte) (int, error) { return w.hijack.Conn.Write(p) }
func (w execWriteCloser) Close() error                { return w.hijack.CloseWrite() }

func classifyContainerError(name string, err error) error {
	if client.IsErrNotFound(err) || strings.Contains(err.Error(), "No such container") {
		return fmt.Errorf("container %s: %w", name, model.ErrNotFound)
	}

	return err
}

func classifyFSError(filePath string, err error) error {
	switch {
	case client.IsErrNotFound(err):
		return fmt.Errorf("%s: %w", filePath, model.ErrNotFound)
	case strings.Contains(strings.ToLower(err.Error()), "permission denied"):
		return fmt.Errorf("%s: %w", filePath, model.ErrPermissionDenied)
	default:
		return fmt.Errorf("%s: %w", filePath, err)
	}
}
