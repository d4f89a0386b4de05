package io

import (
	"context"
	"crypto/rand"
	"fmt"
	"io/fs"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/slok/wrun/internal/model"
)

// WorkspacesYAMLRepository loads workspace definitions from a YAML file.
type WorkspacesYAMLRepository struct {
	fs fs.FS
}

// NewWorkspacesYAMLRepository creates a new YAML workspaces repository.
func NewWorkspacesYAMLRepository(filesystem fs.FS) *WorkspacesYAMLRepository {
	return &WorkspacesYAMLRepository{fs: filesystem}
}

// GetWorkspaces loads workspace definitions from a YAML file and returns
// validated domain models. Workspaces without an explicit ID get a generated
// ULID.
func (r *WorkspacesYAMLRepository) GetWorkspaces(ctx context.Context, path string) ([]model.Workspace, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var cfg workspacesFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	workspaces := make([]model.Workspace, 0, len(cfg.Workspaces))
	for _, wc := range cfg.Workspaces {
		w, err := wc.toModel()
		if err != nil {
			return nil, fmt.Errorf("invalid workspace %q: %w", wc.Name, err)
		}
		workspaces = append(workspaces, w)
	}

	return workspaces, nil
}

// workspacesFile is the YAML structure of a wrun workspaces file.
type workspacesFile struct {
	Workspaces []workspaceConfig `yaml:"workspaces"`
}

type workspaceConfig struct {
	ID         string           `yaml:"id,omitempty"`
	Name       string           `yaml:"name"`
	ProjectDir string           `yaml:"project_dir"`
	Runtime    runtimeConfig    `yaml:"runtime"`
}

type runtimeConfig struct {
	Local     *struct{}               `yaml:"local,omitempty"`
	SSH       *sshRuntimeConfig       `yaml:"ssh,omitempty"`
	Container *containerRuntimeConfig `yaml:"container,omitempty"`
}

type sshRuntimeConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port,omitempty"`
	User         string `yaml:"user"`
	IdentityFile string `yaml:"identity_file,omitempty"`
	SrcBaseDir   string `yaml:"src_base_dir,omitempty"`
}

type containerRuntimeConfig struct {
	Image         string `yaml:"image,omitempty"`
	ContainerName string `yaml:"container_name,omitempty"`
}

func (c workspaceConfig) toModel() (model.Workspace, error) {
	w := model.Workspace{
		ID:         c.ID,
		Name:       c.Name,
		ProjectDir: c.ProjectDir,
		CreatedAt:  time.Now().UTC(),
	}
	if w.ID == "" {
		w.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}

	count := 0
	if c.Runtime.Local != nil {
		w.Runtime.Kind = model.RuntimeKindLocal
		count++
	}
	if c.Runtime.SSH != nil {
		w.Runtime.Kind = model.RuntimeKindSSH
		w.Runtime.SSH = &model.SSHRuntimeConfig{
			Host:         c.Runtime.SSH.Host,
			Port:         c.Runtime.SSH.Port,
			User:         c.Runtime.SSH.User,
			IdentityFile: c.Runtime.SSH.IdentityFile,
			SrcBaseDir:   c.Runtime.SSH.SrcBaseDir,
		}
		count++
	}
	if c.Runtime.Container != nil {
		w.Runtime.Kind = model.RuntimeKindContainer
		w.Runtime.Container = &model.ContainerRuntimeConfig{
			Image:         c.Runtime.Container.Image,
			ContainerName: c.Runtime.Container.ContainerName,
		}
		count++
	}
	if count == 0 {
		// No runtime block means local execution.
		w.Runtime.Kind = model.RuntimeKindLocal
	}
	if count > 1 {
		return model.Workspace{}, fmt.Errorf("exactly one runtime must be specified: %w", model.ErrNotValid)
	}

	if err := w.Validate(); err != nil {
		return model.Workspace{}, err
	}

	return w, nil
}
