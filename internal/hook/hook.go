// Package hook implements the tool hook protocol: a user-supplied executable
// transparently wraps a tool call with pre/post logic, while the tool itself
// executes concurrently with the hook's own output streams.
//
// Protocol, from the hook script's point of view:
//
//   - Context arrives as environment variables (WRUN_TOOL_NAME,
//     WRUN_TOOL_INPUT or WRUN_TOOL_INPUT_PATH for oversized input,
//     WRUN_WORKSPACE_ID, WRUN_PROJECT_DIR).
//   - Printing the readiness marker (ReadyMarker) on stdout signals that
//     pre-logic is done and the tool should run. Everything printed before the
//     marker is pre-tool output, everything after is post-tool output.
//   - Once the tool finishes, exactly one line of JSON with the tool result
//     (or {"error": "..."} on tool failure) is written to the hook's stdin,
//     which is then closed.
//   - Exit code 0 means the hook succeeded; nonzero means hook failure,
//     which is distinct from tool failure.
package hook

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
)

// ReadyMarker is the fixed literal a hook prints on stdout (on its own line)
// to signal it is ready for the tool to execute.
const ReadyMarker = "WRUN_HOOK_READY"

// Environment variables injected into the hook process. Context travels as
// env vars rather than arguments to avoid shell-escaping hazards and
// argument-length limits.
const (
	EnvToolName  = "WRUN_TOOL_NAME"
	EnvToolInput = "WRUN_TOOL_INPUT"
	// EnvToolInputPath points to a temp file holding the tool input when it
	// exceeds the inline threshold.
	EnvToolInputPath = "WRUN_TOOL_INPUT_PATH"
	// EnvToolInputTruncated is "true" when the inline input is a truncated
	// prefix (temp file creation failed).
	EnvToolInputTruncated = "WRUN_TOOL_INPUT_TRUNCATED"
	EnvWorkspaceID        = "WRUN_WORKSPACE_ID"
	EnvProjectDir         = "WRUN_PROJECT_DIR"
)

const (
	// DefaultPhaseTimeout bounds each hook phase (pre and post) by default.
	DefaultPhaseTimeout = 30 * time.Second
	// DefaultInlineInputLimit is the maximum tool input size passed inline
	// before falling back to a temp file.
	DefaultInlineInputLimit = 128 * 1024
)

// ToolFunc executes the wrapped tool and returns its serializable result.
type ToolFunc func(ctx context.Context) (any, error)

// EngineConfig is the configuration for the hook engine.
type EngineConfig struct {
	// HookPath is the user hook executable.
	HookPath string
	// PreTimeout bounds spawn-to-marker time (default: 30s).
	PreTimeout time.Duration
	// PostTimeout bounds tool-completion-to-exit time, result delivery
	// included (default: 30s). It starts only after the tool finishes, so
	// slow tools are never counted against the hook's budget.
	PostTimeout time.Duration
	// InlineInputLimit is the inline tool input threshold (default: 128KiB).
	InlineInputLimit int
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.HookPath == "" {
		return fmt.Errorf("hook path is required")
	}
	if c.PreTimeout == 0 {
		c.PreTimeout = DefaultPhaseTimeout
	}
	if c.PostTimeout == 0 {
		c.PostTimeout = DefaultPhaseTimeout
	}
	if c.InlineInputLimit == 0 {
		c.InlineInputLimit = DefaultInlineInputLimit
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "hook.Engine"})

	return nil
}

// Engine orchestrates the pre-hook/tool/post-hook handshake.
type Engine struct {
	hookPath         string
	preTimeout       time.Duration
	postTimeout      time.Duration
	inlineInputLimit int
	logger           log.Logger
}

// NewEngine creates a new hook engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		hookPath:         cfg.HookPath,
		preTimeout:       cfg.PreTimeout,
		postTimeout:      cfg.PostTimeout,
		inlineInputLimit: cfg.InlineInputLimit,
		logger:           cfg.Logger,
	}, nil
}

// RunResult is what a hook-wrapped tool call yields: the hook outcome plus
// the tool result, when the tool executed.
type RunResult struct {
	Hook       model.HookResult
	ToolResult any
}

// Err maps hook failure modes to the error taxonomy, for callers that want
// hook failures as errors. Tool failures are never reported here: they are
// returned by Run itself.
func (r *RunResult) Err() error {
	switch {
	case r.Hook.TimedOutPhase != model.HookPhaseNone:
		return fmt.Errorf("hook %s phase timed out: %w", r.Hook.TimedOutPhase, model.ErrHookTimeout)
	case !r.Hook.Success:
		return fmt.Errorf("hook exited with code %d: %w", r.Hook.ExitCode, model.ErrHookExitedNonZero)
	default:
		return nil
	}
}

// Run spawns the hook, waits for the readiness marker, executes the tool,
// delivers the result to the hook and waits for it to exit.
//
// A non-nil error is either a spawn failure (wrapping model.ErrSpawn, the
// tool never ran), a context cancellation, or the tool's own execution error
// rethrown verbatim after hook bookkeeping finished. Hook-level failures
// (nonzero exit, phase timeout) are reported in the result, never instead of
// an already-computed tool result.
func (e *Engine) Run(ctx context.Context, hctx model.HookContext, tool ToolFunc) (*RunResult, error) {
	env, tmpPath, err := e.buildEnv(hctx)
	if tmpPath != "" {
		// Scoped cleanup on every exit path, including timeouts and failures.
		defer os.Remove(tmpPath)
	}
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(e.hookPath)
	cmd.Env = env
	if hctx.ProjectDir != "" {
		cmd.Dir = hctx.ProjectDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("could not open hook stdin: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("could not create hook stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("could not create hook stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return &RunResult{Hook: model.HookResult{Success: false, ToolExecuted: false, ExitCode: -1}},
			fmt.Errorf("could not spawn hook %q: %v: %w", e.hookPath, err, model.ErrSpawn)
	}
	stdoutW.Close()
	stderrW.Close()

	run := &hookRun{
		engine:     e,
		cmd:        cmd,
		stdin:      stdin,
		markerCh:   make(chan struct{}),
		stdoutDone: make(chan struct{}),
		exitCh:     make(chan int, 1),
	}

	// Background drains run for the whole process lifetime and are joined
	// before returning, so no output or drain error is ever lost.
	run.wg.Add(2)
	go run.drainStdout(stdoutR)
	go run.drainStderr(stderrR)
	go run.waitExit()

	result, toolResult, toolErr := run.orchestrate(ctx, hctx, tool)

	run.wg.Wait()

	result.PreToolOutput = run.preOut.String()
	result.PostToolOutput = run.postOut.String()
	result.Stderr = run.stderr.String() + run.diagnostics
	result.Success = result.Success && result.TimedOutPhase == model.HookPhaseNone

	runResult := &RunResult{Hook: *result, ToolResult: toolResult}

	// The tool's own error always propagates to the ultimate caller, even
	// when the hook wrapped it successfully.
	if toolErr != nil {
		return runResult, toolErr
	}
	if ctx.Err() != nil && !result.ToolExecuted {
		return runResult, ctx.Err()
	}

	return runResult, nil
}

// buildEnv assembles the hook environment, spilling oversized tool input to a
// temp file. When the temp file cannot be created the input is truncated and
// flagged, so the hook can tell it is looking at a prefix.
func (e *Engine) buildEnv(hctx model.HookContext) (env []string, tmpPath string, err error) {
	env = os.Environ()
	for k, v := range hctx.ExtraEnv {
		env = append(env, k+"="+v)
	}
	env = append(env,
		EnvToolName+"="+hctx.ToolName,
		EnvWorkspaceID+"="+hctx.WorkspaceID,
		EnvProjectDir+"="+hctx.ProjectDir,
	)

	if len(hctx.ToolInput) <= e.inlineInputLimit {
		env = append(env, EnvToolInput+"="+hctx.ToolInput)
		return env, "", nil
	}

	tmpFile, err := os.CreateTemp("", "wrun-hook-input-*")
	if err == nil {
		tmpPath = tmpFile.Name()
		_, werr := tmpFile.WriteString(hctx.ToolInput)
		cerr := tmpFile.Close()
		if werr == nil && cerr == nil {
			env = append(env, EnvToolInputPath+"="+tmpPath)
			return env, tmpPath, nil
		}
	}

	e.logger.Warningf("Could not spill oversized tool input to a temp file, truncating inline value")
	env = append(env,
		EnvToolInput+"="+hctx.ToolInput[:e.inlineInputLimit],
		EnvToolInputTruncated+"=true",
	)

	return env, tmpPath, nil
}

// hookRun is the per-invocation state of the protocol state machine.
type hookRun struct {
	engine *Engine
	cmd    *exec.Cmd
	stdin  io.WriteCloser

	wg         sync.WaitGroup
	markerCh   chan struct{}
	stdoutDone chan struct{}
	exitCh     chan int

	// preOut/postOut are written only by the stdout drain goroutine, stderr
	// only by the stderr drain goroutine; both are read after wg.Wait.
	preOut  bytes.Buffer
	postOut bytes.Buffer
	stderr  bytes.Buffer

	diagnostics string
}

// orchestrate drives the state machine:
// spawning -> pre-hook-running -> tool-executing -> result-sent -> post-hook-running -> exited.
func (r *hookRun) orchestrate(ctx context.Context, hctx model.HookContext, tool ToolFunc) (result *model.HookResult, toolResult any, toolErr error) {
	result = &model.HookResult{ExitCode: -1}

	preTimer := time.NewTimer(r.engine.preTimeout)
	defer preTimer.Stop()

	// Pre phase: wait for the readiness marker.
	select {
	case <-r.markerCh:
		// Ready for the tool.
	case code := <-r.exitCh:
		// The exit can beat the stdout drain even when the hook printed the
		// marker right before exiting. Join the drain first: only when it
		// finished without seeing the marker did the hook veto the tool.
		<-r.stdoutDone
		select {
		case <-r.markerCh:
			// Marker was emitted, the tool still runs. Requeue the exit code
			// for the post phase.
			r.exitCh <- code
		default:
			result.ExitCode = code
			result.Success = code == 0
			return result, nil, nil
		}
	case <-preTimer.C:
		r.timeout(result, model.HookPhasePre, r.engine.preTimeout)
		return result, nil, nil
	case <-ctx.Done():
		r.kill()
		<-r.exitCh
		return result, nil, nil
	}
	preTimer.Stop()

	// Tool executes while the stdout drain keeps running: the hook may keep
	// logging after signaling readiness.
	result.ToolExecuted = true
	toolResult, toolErr = tool(ctx)

	// Post phase clock starts now that the tool finished: it bounds result
	// delivery too. The write runs in the background because a hook that
	// never reads stdin would block it past any pipe buffer; the timeout
	// kill closes the hook's stdin read end and fails the write.
	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		r.sendToolResult(toolResult, toolErr)
	}()

	postTimer := time.NewTimer(r.engine.postTimeout)
	defer postTimer.Stop()

	select {
	case code := <-r.exitCh:
		result.ExitCode = code
		result.Success = code == 0
	case <-postTimer.C:
		r.timeout(result, model.HookPhasePost, r.engine.postTimeout)
	case <-ctx.Done():
		r.kill()
		<-r.exitCh
	}

	<-sendDone

	return result, toolResult, toolErr
}

// sendToolResult writes exactly one line of JSON to the hook's stdin and
// closes it. A hook that exited already is fine: the write failure is only
// informational.
func (r *hookRun) sendToolResult(toolResult any, toolErr error) {
	defer r.stdin.Close()

	var payload any = toolResult
	if toolErr != nil {
		payload = map[string]string{"error": toolErr.Error()}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": "could not serialize tool result: %s"}`, err))
	}

	if _, err := r.stdin.Write(append(data, '\n')); err != nil {
		r.engine.logger.Debugf("Could not deliver tool result to hook (it may have exited): %v", err)
	}
}

// timeout records the timed-out phase, appends the diagnostic and kills the hook.
func (r *hookRun) timeout(result *model.HookResult, phase model.HookPhase, after time.Duration) {
	result.TimedOutPhase = phase
	result.Success = false
	r.diagnostics = fmt.Sprintf("\nwrun: hook timed out in %s phase after %s", phase, after)
	r.kill()
	result.ExitCode = <-r.exitCh
}

func (r *hookRun) kill() {
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
}

// waitExit resolves the process exit code exactly once.
func (r *hookRun) waitExit() {
	err := r.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	r.exitCh <- code
}

// drainStdout accumulates the hook's stdout, watching for the readiness
// marker. Everything before the marker is pre-tool output, everything after
// is post-tool output; the marker line itself belongs to neither.
func (r *hookRun) drainStdout(stdout io.ReadCloser) {
	defer r.wg.Done()
	defer close(r.stdoutDone)
	defer stdout.Close()

	markerSeen := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !markerSeen && line == ReadyMarker {
			markerSeen = true
			close(r.markerCh)
			continue
		}
		if markerSeen {
			r.postOut.WriteString(line + "\n")
		} else {
			r.preOut.WriteString(line + "\n")
		}
	}
}

// drainStderr captures stderr for the whole process lifetime. It is never
// used for control flow, only for diagnostics.
func (r *hookRun) drainStderr(stderr io.ReadCloser) {
	defer r.wg.Done()
	defer stderr.Close()

	_, _ = io.Copy(&r.stderr, stderr)
}
