// Package ssh implements the runtime capability contract against a remote
// host reached over a pooled, multiplexed SSH connection. One control
// connection serves every exec and file call; file operations go through the
// SFTP subsystem.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	envutil "github.com/slok/wrun/internal/utils/env"
)

const (
	// DefaultConnectTimeout is the default SSH connection timeout.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultPort is the default SSH port.
	DefaultPort = 22
)

// Config is the configuration for the SSH runtime.
type Config struct {
	// Host is the IP address or hostname of the target.
	Host string
	// Port is the SSH port (default: 22).
	Port int
	// User is the SSH user.
	User string
	// PrivateKey is the PEM-encoded private key bytes.
	PrivateKey []byte
	// ConnectTimeout is the SSH connection timeout (default: 10s).
	ConnectTimeout time.Duration
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if len(c.PrivateKey) == 0 {
		return fmt.Errorf("private key is required")
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runtime.SSH"})

	return nil
}

// Runtime is the SSH implementation of the runtime.Runtime contract.
//
// The underlying connection is established lazily, shared by all calls and
// re-established transparently when the control connection has died. Callers
// never close it directly: Close tears everything down.
type Runtime struct {
	cfg    Config
	logger log.Logger

	mu     sync.Mutex
	conn   *ssh.Client
	sftpc  *sftp.Client
	home   string
	closed bool
}

// NewRuntime creates a new SSH runtime. It does not dial: the first call does.
func NewRuntime(cfg Config) (*Runtime, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runtime{
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// Kind returns the backend kind tag.
func (r *Runtime) Kind() model.RuntimeKind { return model.RuntimeKindSSH }

// client returns the pooled SSH connection, dialing or redialing as needed.
func (r *Runtime) client(ctx context.Context) (*ssh.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.clientLocked(ctx)
}

func (r *Runtime) clientLocked(ctx context.Context) (*ssh.Client, error) {
	if r.closed {
		return nil, fmt.Errorf("ssh runtime is closed: %w", model.ErrNotValid)
	}

	if r.conn != nil {
		// Probe the pooled control connection before reuse so a dead one is
		// replaced transparently instead of failing the caller.
		_, _, err := r.conn.SendRequest("keepalive@openssh.com", true, nil)
		if err == nil {
			return r.conn, nil
		}

		r.logger.Warningf("Pooled SSH connection to %s died, reconnecting: %v", r.cfg.Host, err)
		_ = r.conn.Close()
		r.conn = nil
		r.sftpc = nil
	}

	signer, err := ssh.ParsePrivateKey(r.cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}

	sshCfg := &ssh.ClientConfig{
		User: r.cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         r.cfg.ConnectTimeout,
	}

	addr := net.JoinHostPort(r.cfg.Host, fmt.Sprintf("%d", r.cfg.Port))

	// Use a dialer with context for cancellation support.
	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshCfg)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake failed with %s: %w", addr, err)
	}

	r.conn = ssh.NewClient(sshConn, chans, reqs)
	r.logger.Debugf("Established SSH control connection to %s", addr)

	return r.conn, nil
}

// sftpClient returns the pooled SFTP client, creating it on first use.
func (r *Runtime) sftpClient(ctx context.Context) (*sftp.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.clientLocked(ctx)
	if err != nil {
		return nil, err
	}

	if r.sftpc != nil {
		return r.sftpc, nil
	}

	sftpc, err := sftp.NewClient(conn)
	if err != nil {
		return nil, fmt.Errorf("could not create sftp client: %w", err)
	}
	r.sftpc = sftpc

	return sftpc, nil
}

// Exec runs a shell command on the remote host.
func (r *Runtime) Exec(ctx context.Context, command string, opts model.ExecOptions) (*runtime.Execution, error) {
	conn, err := r.client(ctx)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrSpawn)
	}

	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("could not create ssh session: %v: %w", err, model.ErrSpawn)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("could not open stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("could not open stdout pipe: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("could not open stderr pipe: %w", err)
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if opts.TimeoutSeconds > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutSeconds)*time.Second)
	}

	// Working dir and env overlay travel inside the remote command line:
	// sshd rarely accepts Setenv for arbitrary variables.
	remoteCmd := buildRemoteCommand(command, opts)

	if err := session.Start(remoteCmd); err != nil {
		if cancel != nil {
			cancel()
		}
		session.Close()
		return nil, fmt.Errorf("could not start remote command: %v: %w", err, model.ErrSpawn)
	}

	execution := runtime.NewExecution(stdin, stdout, stderr)

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	go func() {
		defer session.Close()
		if cancel != nil {
			defer cancel()
		}

		select {
		case <-execCtx.Done():
			// Kill the remote process and unblock pending stream reads.
			_ = session.Signal(ssh.SIGKILL)
			_ = session.Close()
			execution.Complete(-1, execCtx.Err())
		case err := <-done:
			if err == nil {
				execution.Complete(0, nil)
				return
			}
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				execution.Complete(exitErr.ExitStatus(), nil)
				return
			}
			execution.Complete(-1, fmt.Errorf("remote command failed: %w", err))
		}
	}()

	return execution, nil
}

// Stat returns remote file information via SFTP.
func (r *Runtime) Stat(ctx context.Context, filePath string) (*model.FileStat, error) {
	sftpc, err := r.sftpClient(ctx)
	if err != nil {
		return nil, err
	}

	info, err := sftpc.Stat(filePath)
	if err != nil {
		return nil, classifySFTPError(filePath, err)
	}

	return &model.FileStat{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
		IsDir:     info.IsDir(),
	}, nil
}

// ReadFile reads a remote file via SFTP.
func (r *Runtime) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	sftpc, err := r.sftpClient(ctx)
	if err != nil {
		return nil, err
	}

	f, err := sftpc.Open(filePath)
	if err != nil {
		return nil, classifySFTPError(filePath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("could not read remote file %s: %w", filePath, err)
	}

	return data, nil
}

// WriteFile writes a remote file via SFTP, through a temp file plus rename so
// readers never observe partial content.
func (r *Runtime) WriteFile(ctx context.Context, filePath string, data []byte) error {
	sftpc, err := r.sftpClient(ctx)
	if err != nil {
		return err
	}

	dir := path.Dir(filePath)
	if err := sftpc.MkdirAll(dir); err != nil {
		return classifySFTPError(dir, err)
	}

	tmpPath := fmt.Sprintf("%s.wrun-tmp-%d", filePath, time.Now().UnixNano())
	f, err := sftpc.Create(tmpPath)
	if err != nil {
		return classifySFTPError(tmpPath, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = sftpc.Remove(tmpPath)
		return fmt.Errorf("could not write remote file %s: %w", filePath, err)
	}
	if err := f.Close(); err != nil {
		_ = sftpc.Remove(tmpPath)
		return fmt.Errorf("could not close remote file %s: %w", filePath, err)
	}

	if err := sftpc.PosixRename(tmpPath, filePath); err != nil {
		_ = sftpc.Remove(tmpPath)
		return fmt.Errorf("could not rename remote file into place %s: %w", filePath, err)
	}

	return nil
}

// NormalizePath resolves path against base using the remote environment's
// POSIX conventions. It must not use local filesystem APIs: the literal bytes
// of base live on a different machine.
func (r *Runtime) NormalizePath(filePath, base string) string {
	r.mu.Lock()
	home := r.home
	r.mu.Unlock()
	if home != "" {
		filePath = runtime.ExpandPosixHome(filePath, home)
	}

	return runtime.NormalizePosixPath(filePath, base)
}

// HomeDir queries the remote shell's home directory. Cached after first use.
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
		return "", fmt.Errorf("could not resolve remote home directory: %w", model.ErrNotFound)
	}

	home = strings.TrimSpace(result.Stdout)
	r.mu.Lock()
	r.home = home
	r.mu.Unlock()

	return home, nil
}

// Close tears down the pooled connection.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.sftpc != nil {
		_ = r.sftpc.Close()
		r.sftpc = nil
	}
	if r.conn != nil {
		err := r.conn.Close()
		r.conn = nil
		return err
	}

	return nil
}

// buildRemoteCommand wraps the command with cd and env overlay so it runs
// with the requested working directory and variables on the remote side.
func buildRemoteCommand(command string, opts model.ExecOptions) string {
	var sb strings.Builder

	if opts.WorkingDir != "" {
		sb.WriteString("cd ")
		sb.WriteString(shellQuote(opts.WorkingDir))
		sb.WriteString(" && ")
	}
	if len(opts.Env) > 0 {
		sb.WriteString("env ")
		for _, kv := range envutil.ToSlice(opts.Env) {
			sb.WriteString(shellQuote(kv))
			sb.WriteString(" ")
		}
	}
	sb.WriteString("/bin/sh -c ")
	sb.WriteString(shellQuote(command))

	return sb.String()
}

// shellQuote single-quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// classifySFTPError maps SFTP errors to the runtime error taxonomy.
func classifySFTPError(filePath string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist) || errors.Is(err, sftp.ErrSSHFxNoSuchFile):
		return fmt.Errorf("%s: %w", filePath, model.ErrNotFound)
	case errors.Is(err, os.ErrPermission) || errors.Is(err, sftp.ErrSSHFxPermissionDenied):
		return fmt.Errorf("%s: %w", filePath, model.ErrPermissionDenied)
	default:
		return fmt.Errorf("%s: %w", filePath, err)
	}
}
