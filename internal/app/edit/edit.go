// Package edit implements the shared preflight+commit pipeline used by every
// file-mutating tool: path validation, backend selection, size limits, read,
// pure transformation, write and diff. Editing strategies (string replace,
// line replace) plug in as pure transformation functions so the pipeline
// logic exists exactly once.
package edit

import (
	"context"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/slok/wrun/internal/lock"
	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	"github.com/slok/wrun/internal/runtime/local"
)

const (
	// DefaultMaxFileSizeBytes is the edit pipeline size ceiling.
	DefaultMaxFileSizeBytes = 1024 * 1024
	// PlanFileRelPath is the plan file location relative to the project dir.
	// The plan file always lives on the controlling machine, regardless of the
	// workspace's primary runtime.
	PlanFileRelPath = ".wrun/plan.md"
)

// TransformResult is the outcome of a pure content transformation.
type TransformResult struct {
	// NewContent is the full new file content.
	NewContent string
	// Replacements is how many replacements the transformation applied.
	Replacements int
}

// TransformFunc receives the original file content and returns the new
// content, or a domain failure wrapping model.ErrTransformationRejected
// (distinct from infrastructure failures).
type TransformFunc func(original string) (*TransformResult, error)

// ServiceConfig is the configuration for the edit pipeline service.
type ServiceConfig struct {
	// Workspace is the workspace the edits run against.
	Workspace model.Workspace
	// Runtime is the workspace's primary runtime.
	Runtime runtime.Runtime
	// LocalRuntime services plan-file edits (default: a local runtime, or
	// Runtime itself when it is already local).
	LocalRuntime runtime.Runtime
	// Locker serializes mutations per resolved path (default: a new keyed mutex).
	Locker *lock.KeyedMutex
	// MaxFileSizeBytes is the size ceiling (default: 1MiB).
	MaxFileSizeBytes int64
	// PlanMode restricts edits to the plan file.
	PlanMode bool
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if err := c.Workspace.Validate(); err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}
	if c.Runtime == nil {
		return fmt.Errorf("runtime is required")
	}
	if c.LocalRuntime == nil {
		if c.Runtime.Kind() == model.RuntimeKindLocal {
			c.LocalRuntime = c.Runtime
		} else {
			localRT, err := local.NewRuntime(local.Config{Logger: c.Logger})
			if err != nil {
				return fmt.Errorf("could not create local runtime: %w", err)
			}
			c.LocalRuntime = localRT
		}
	}
	if c.Locker == nil {
		c.Locker = lock.NewKeyedMutex()
	}
	if c.MaxFileSizeBytes == 0 {
		c.MaxFileSizeBytes = DefaultMaxFileSizeBytes
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Edit"})

	return nil
}

// Service runs file edit operations through the pipeline.
type Service struct {
	workspace   model.Workspace
	runtime     runtime.Runtime
	localRT     runtime.Runtime
	locker      *lock.KeyedMutex
	maxFileSize int64
	planMode    bool
	logger      log.Logger
}

// NewService creates a new edit pipeline service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		workspace:   cfg.Workspace,
		runtime:     cfg.Runtime,
		localRT:     cfg.LocalRuntime,
		locker:      cfg.Locker,
		maxFileSize: cfg.MaxFileSizeBytes,
		planMode:    cfg.PlanMode,
		logger:      cfg.Logger,
	}, nil
}

// Request contains the parameters for a file edit.
type Request struct {
	// Path is the target file, relative to the workspace project dir (an
	// absolute path redundantly repeating it is auto-corrected).
	Path string
	// Transform is the pure editing strategy to apply.
	Transform TransformFunc
}

// Result is the outcome of a successful edit.
type Result struct {
	// Path is the resolved target path.
	Path string
	// Diff is the unified diff between the original and the new content.
	Diff string
	// Replacements is how many replacements were applied.
	Replacements int
	// Warning carries non-fatal validation warnings (e.g. auto-corrected path).
	Warning string
}

// Apply runs the edit pipeline for a single file.
func (s *Service) Apply(ctx context.Context, req Request) (*Result, error) {
	if req.Transform == nil {
		return nil, fmt.Errorf("transform is required: %w", model.ErrNotValid)
	}

	reqPath, warning := s.correctRedundantPath(req.Path)

	rt, resolved, isPlan, err := s.selectBackend(ctx, reqPath)
	if err != nil {
		return nil, err
	}

	if err := s.checkBoundary(resolved, isPlan); err != nil {
		return nil, err
	}

	if err := s.checkSize(ctx, rt, resolved); err != nil {
		return nil, err
	}

	result := &Result{Path: resolved, Warning: warning}

	// Read-transform-write is a critical section per resolved path.
	err = s.locker.WithLock(ctx, resolved, func() error {
		original, err := rt.ReadFile(ctx, resolved)
		if err != nil {
			return err
		}

		transformed, err := req.Transform(string(original))
		if err != nil {
			return err
		}

		if err := rt.WriteFile(ctx, resolved, []byte(transformed.NewContent)); err != nil {
			return err
		}

		result.Replacements = transformed.Replacements
		result.Diff, err = unifiedDiff(resolved, string(original), transformed.NewContent)

		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("Edited %s (%d replacements)", resolved, result.Replacements)

	return result, nil
}

// correctRedundantPath rewrites an absolute path that redundantly repeats the
// project dir into a relative one. Ergonomics only, not a security boundary.
func (s *Service) correctRedundantPath(reqPath string) (string, string) {
	projectDir := strings.TrimSuffix(s.workspace.ProjectDir, "/")
	if reqPath == projectDir || !strings.HasPrefix(reqPath, projectDir+"/") {
		return reqPath, ""
	}

	rel := strings.TrimPrefix(reqPath, projectDir+"/")
	warning := fmt.Sprintf("path %q redundantly repeats the working directory, using %q", reqPath, rel)

	return rel, warning
}

// selectBackend resolves the path on the active backend and reroutes plan
// file edits to the always-local runtime.
func (s *Service) selectBackend(ctx context.Context, reqPath string) (rt runtime.Runtime, resolved string, isPlan bool, err error) {
	planPath := s.localRT.NormalizePath(PlanFileRelPath, s.workspace.ProjectDir)
	if s.localRT.NormalizePath(reqPath, s.workspace.ProjectDir) == planPath {
		return s.localRT, planPath, true, nil
	}

	if strings.HasPrefix(reqPath, "~") {
		home, err := s.runtime.HomeDir(ctx)
		if err != nil {
			return nil, "", false, fmt.Errorf("could not resolve home directory: %w", err)
		}
		reqPath = runtime.ExpandPosixHome(reqPath, home)
	}

	return s.runtime, s.runtime.NormalizePath(reqPath, s.workspace.ProjectDir), false, nil
}

// checkBoundary enforces plan-mode restrictions and the workspace security
// boundary.
func (s *Service) checkBoundary(resolved string, isPlan bool) error {
	if isPlan {
		return nil
	}

	if s.planMode {
		return fmt.Errorf("%q: %w", resolved, model.ErrPlanModeRestricted)
	}

	projectDir := strings.TrimSuffix(s.workspace.ProjectDir, "/")
	if resolved != projectDir && !strings.HasPrefix(resolved, projectDir+"/") {
		return fmt.Errorf("%q escapes the workspace working directory %q, request permission instead of retrying: %w", resolved, projectDir, model.ErrPathOutsideWorkspace)
	}

	return nil
}

// checkSize rejects directories and files over the size ceiling.
func (s *Service) checkSize(ctx context.Context, rt runtime.Runtime, resolved string) error {
	stat, err := rt.Stat(ctx, resolved)
	if err != nil {
		return err
	}

	if stat.IsDir {
		return fmt.Errorf("%q is a directory: %w", resolved, model.ErrNotValid)
	}
	if stat.SizeBytes > s.maxFileSize {
		return fmt.Errorf("%q is %d bytes, over the %d byte limit, use external tools (grep, sed) for large file edits: %w",
			resolved, stat.SizeBytes, s.maxFileSize, model.ErrFileTooLarge)
	}

	return nil
}

func unifiedDiff(path, original, updated string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(updated),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("could not compute diff: %w", err)
	}

	return diff, nil
}
