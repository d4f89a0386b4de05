// Package fsops implements workspace file access: read, write and stat
// through the workspace runtime, with writes serialized per resolved path.
package fsops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/wrun/internal/lock"
	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
	"github.com/slok/wrun/internal/runtime"
	"github.com/slok/wrun/internal/storage"
)

// RuntimeFactory creates the execution runtime for a workspace.
type RuntimeFactory func(w model.Workspace) (runtime.Runtime, error)

// ServiceConfig is the configuration for the file operations service.
type ServiceConfig struct {
	Repository     storage.Repository
	RuntimeFactory RuntimeFactory
	// Locker serializes writes per resolved path (default: a new keyed mutex).
	Locker *lock.KeyedMutex
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.RuntimeFactory == nil {
		return fmt.Errorf("runtime factory is required")
	}
	if c.Locker == nil {
		c.Locker = lock.NewKeyedMutex()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.FSOps"})
	return nil
}

// Service handles file operations in workspaces.
type Service struct {
	repo       storage.Repository
	runtimeFor RuntimeFactory
	locker     *lock.KeyedMutex
	logger     log.Logger
}

// NewService creates a new file operations service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:       cfg.Repository,
		runtimeFor: cfg.RuntimeFactory,
		locker:     cfg.Locker,
		logger:     cfg.Logger,
	}, nil
}

// Request identifies a file in a workspace.
type Request struct {
	WorkspaceNameOrID string
	Path              string
}

// ReadFile reads a whole file from a workspace.
func (s *Service) ReadFile(ctx context.Context, req Request) ([]byte, error) {
	rt, resolved, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	data, err := rt.ReadFile(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("could not read %q: %w", resolved, err)
	}

	return data, nil
}

// WriteFile writes a whole file in a workspace. Concurrent writes to the same
// resolved path are serialized.
func (s *Service) WriteFile(ctx context.Context, req Request, data []byte) error {
	rt, resolved, err := s.resolve(ctx, req)
	if err != nil {
		return err
	}
	defer rt.Close()

	err = s.locker.WithLock(ctx, resolved, func() error {
		return rt.WriteFile(ctx, resolved, data)
	})
	if err != nil {
		return fmt.Errorf("could not write %q: %w", resolved, err)
	}

	s.logger.Debugf("Wrote %d bytes to %s", len(data), resolved)

	return nil
}

// StatFile returns file information from a workspace.
func (s *Service) StatFile(ctx context.Context, req Request) (*model.FileStat, error) {
	rt, resolved, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	stat, err := rt.Stat(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("could not stat %q: %w", resolved, err)
	}

	return stat, nil
}

// resolve looks up the workspace, creates its runtime and normalizes the
// request path against the workspace path base. The caller owns closing the
// runtime.
func (s *Service) resolve(ctx context.Context, req Request) (runtime.Runtime, string, error) {
	if req.Path == "" {
		return nil, "", fmt.Errorf("path cannot be empty: %w", model.ErrNotValid)
	}

	workspace, err := s.resolveWorkspace(ctx, req.WorkspaceNameOrID)
	if err != nil {
		return nil, "", err
	}

	rt, err := s.runtimeFor(*workspace)
	if err != nil {
		return nil, "", fmt.Errorf("could not create %s runtime: %w", workspace.Runtime.Kind, err)
	}

	reqPath := req.Path
	if strings.HasPrefix(reqPath, "~") {
		home, err := rt.HomeDir(ctx)
		if err != nil {
			rt.Close()
			return nil, "", fmt.Errorf("could not resolve home directory: %w", err)
		}
		reqPath = runtime.ExpandPosixHome(reqPath, home)
	}

	return rt, rt.NormalizePath(reqPath, workspace.PathBase()), nil
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
