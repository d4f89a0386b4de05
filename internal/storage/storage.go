package storage

import (
	"context"

	"github.com/slok/wrun/internal/model"
)

// Repository is the interface for workspace registration. Workspaces are not
// persisted beyond the process: they are loaded from configuration at startup.
type Repository interface {
	CreateWorkspace(ctx context.Context, w model.Workspace) error
	GetWorkspace(ctx context.Context, id string) (*model.Workspace, error)
	GetWorkspaceByName(ctx context.Context, name string) (*model.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) error
}
