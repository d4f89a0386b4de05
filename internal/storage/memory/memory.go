package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})

	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	workspaces map[string]model.Workspace
	mu         sync.RWMutex
	logger     log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		workspaces: map[string]model.Workspace{},
		logger:     cfg.Logger,
	}, nil
}

// CreateWorkspace registers a new workspace.
func (r *Repository) CreateWorkspace(ctx context.Context, w model.Workspace) error {
	if err := w.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workspaces[w.ID]; ok {
		return fmt.Errorf("workspace with id %s: %w", w.ID, model.ErrAlreadyExists)
	}
	for _, existing := range r.workspaces {
		if existing.Name == w.Name {
			return fmt.Errorf("workspace with name %s: %w", w.Name, model.ErrAlreadyExists)
		}
	}

	r.workspaces[w.ID] = w
	r.logger.Debugf("Registered workspace %s (%s)", w.Name, w.ID)

	return nil
}

// GetWorkspace retrieves a workspace by ID.
func (r *Repository) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, model.ErrNotFound)
	}

	// Return a copy.
	wCopy := w

	return &wCopy, nil
}

// GetWorkspaceByName retrieves a workspace by name.
func (r *Repository) GetWorkspaceByName(ctx context.Context, name string) (*model.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.workspaces {
		if w.Name == name {
			wCopy := w
			return &wCopy, nil
		}
	}

	return nil, fmt.Errorf("workspace %s: %w", name, model.ErrNotFound)
}

// ListWorkspaces returns all registered workspaces sorted by name.
func (r *Repository) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workspaces := make([]model.Workspace, 0, len(r.workspaces))
	for _, w := range r.workspaces {
		workspaces = append(workspaces, w)
	}
	sort.Slice(workspaces, func(i, j int) bool { return workspaces[i].Name < workspaces[j].Name })

	return workspaces, nil
}

// DeleteWorkspace removes a workspace.
func (r *Repository) DeleteWorkspace(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workspaces[id]; !ok {
		return fmt.Errorf("workspace %s: %w", id, model.ErrNotFound)
	}
	delete(r.workspaces, id)

	return nil
}
