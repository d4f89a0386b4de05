package exec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/slok/wrun/internal/hook"
	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	"github.com/slok/wrun/internal/storage"
)

// RuntimeFactory creates the execution runtime for a workspace.
type RuntimeFactory func(w model.Workspace) (runtime.Runtime, error)

// ServiceConfig is the configuration for the exec service.
type ServiceConfig struct {
	Repository     storage.Repository
	RuntimeFactory RuntimeFactory
	// HookEngine wraps every command with the user hook when set (optional).
	HookEngine *hook.Engine
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.RuntimeFactory == nil {
		return fmt.Errorf("runtime factory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Exec"})
	return nil
}

// Service handles command execution in workspaces.
type Service struct {
	repo       storage.Repository
	runtimeFor RuntimeFactory
	hookEngine *hook.Engine
	logger     log.Logger
}

// NewService creates a new exec service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:       cfg.Repository,
		runtimeFor: cfg.RuntimeFactory,
		hookEngine: cfg.HookEngine,
		logger:     cfg.Logger,
	}, nil
}

// Request contains the parameters for executing a command.
type Request struct {
	WorkspaceNameOrID string
	Command           string
	Opts              model.ExecOptions
}

// Result is the outcome of a command execution: the drained command result
// plus, when a hook wrapped the call, the hook outcome.
type Result struct {
	Exec *runtime.CaptureResult
	Hook *model.HookResult
}

// Run executes a shell command in a workspace, through the user hook when one
// is configured. The command's own failure always takes precedence over hook
// failures.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}

	workspace, err := s.resolveWorkspace(ctx, req.WorkspaceNameOrID)
	if err != nil {
		return nil, err
	}

	rt, err := s.runtimeFor(*workspace)
	if err != nil {
		return nil, fmt.Errorf("could not create %s runtime: %w", workspace.Runtime.Kind, err)
	}
	defer rt.Close()

	opts := req.Opts
	if opts.WorkingDir == "" {
		opts.WorkingDir = workspace.ProjectDir
	}
	opts.WorkingDir = rt.NormalizePath(opts.WorkingDir, workspace.PathBase())

	tool := func(ctx context.Context) (any, error) {
		execution, err := rt.Exec(ctx, req.Command, opts)
		if err != nil {
			return nil, fmt.Errorf("could not execute command: %w", err)
		}
		return runtime.Capture(ctx, execution)
	}

	if s.hookEngine == nil {
		toolResult, err := tool(ctx)
		if err != nil {
			return nil, err
		}
		res := toolResult.(*runtime.CaptureResult)
		s.logger.Debugf("Executed command in workspace %s (%s): exit code %d", workspace.Name, workspace.ID, res.ExitCode)
		return &Result{Exec: res}, nil
	}

	hctx := model.HookContext{
		ToolName:    "exec",
		ToolInput:   marshalToolInput(req.Command, opts),
		WorkspaceID: workspace.ID,
		ProjectDir:  workspace.ProjectDir,
	}

	runResult, err := s.hookEngine.Run(ctx, hctx, tool)
	if err != nil {
		return nil, err
	}

	result := &Result{Hook: &runResult.Hook}
	if captured, ok := runResult.ToolResult.(*runtime.CaptureResult); ok {
		result.Exec = captured
	}

	// Hook failures never mask an already-computed command result.
	if hookErr := runResult.Err(); hookErr != nil {
		s.logger.Warningf("Hook failed around command execution: %v", hookErr)
		return result, hookErr
	}

	return result, nil
}

// resolveWorkspace looks up a workspace by name first, then by ID.
func (s *Service) resolveWorkspace(ctx context.Context, nameOrID string) (*model.Workspace, error) {
	workspace, err := s.repo.GetWorkspaceByName(ctx, nameOrID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			workspace, err = s.repo.GetWorkspace(ctx, nameOrID)
		}
		if err != nil {
			return nil, fmt.Errorf("could not find workspace: %w", err)
		}
	}

	return workspace, nil
}

// marshalToolInput serializes the command call for hook consumption. Hooks see
// JSON, never shell-spliced arguments.
func marshalToolInput(command string, opts model.ExecOptions) string {
	payload := map[string]any{
		"command":     command,
		"working_dir": opts.WorkingDir,
	}
	if len(opts.Env) > 0 {
		payload["env"] = opts.Env
	}
	if opts.TimeoutSeconds > 0 {
		payload["timeout_seconds"] = opts.TimeoutSeconds
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"command": %q}`, command)
	}

	return string(data)
}
