package model

import (
	"fmt"
	"time"
)

// RuntimeKind identifies the execution substrate of a workspace runtime.
type RuntimeKind string

const (
	// RuntimeKindLocal executes on the controlling machine.
	RuntimeKindLocal RuntimeKind = "local"
	// RuntimeKindSSH executes on a remote host over a pooled SSH connection.
	RuntimeKindSSH RuntimeKind = "ssh"
	// RuntimeKindContainer executes inside a running container.
	RuntimeKindContainer RuntimeKind = "container"
)

// Workspace binds a project directory to the runtime that services every
// exec/file call made against it. Immutable once created.
type Workspace struct {
	ID         string
	Name       string
	ProjectDir string
	Runtime    RuntimeConfig
	CreatedAt  time.Time
}

// PathBase returns the directory relative workspace paths resolve against:
// the SSH runtime's SrcBaseDir when configured, the project dir otherwise.
func (w *Workspace) PathBase() string {
	if w.Runtime.Kind == RuntimeKindSSH && w.Runtime.SSH != nil && w.Runtime.SSH.SrcBaseDir != "" {
		return w.Runtime.SSH.SrcBaseDir
	}

	return w.ProjectDir
}

// RuntimeConfig is the tagged runtime variant for a workspace. Exactly the
// variant matching Kind must be set (local carries no extra configuration).
type RuntimeConfig struct {
	Kind      RuntimeKind
	SSH       *SSHRuntimeConfig
	Container *ContainerRuntimeConfig
}

// SSHRuntimeConfig configures a remote SSH execution target.
type SSHRuntimeConfig struct {
	Host         string
	Port         int
	User         string
	IdentityFile string
	// SrcBaseDir is the remote base directory that relative workspace paths
	// resolve against.
	SrcBaseDir string
}

// ContainerRuntimeConfig configures a container execution target. Either a
// running container name, or an image that wrun ensures a container for.
type ContainerRuntimeConfig struct {
	Image         string
	ContainerName string
}

// Validate validates the runtime configuration.
func (c *RuntimeConfig) Validate() error {
	switch c.Kind {
	case RuntimeKindLocal:
		if c.SSH != nil || c.Container != nil {
			return fmt.Errorf("local runtime takes no ssh/container configuration: %w", ErrNotValid)
		}
	case RuntimeKindSSH:
		if c.SSH == nil {
			return fmt.Errorf("ssh runtime configuration is required: %w", ErrNotValid)
		}
		if c.Container != nil {
			return fmt.Errorf("only one runtime can be configured at a time: %w", ErrNotValid)
		}
		if c.SSH.Host == "" {
			return fmt.Errorf("ssh host is required: %w", ErrNotValid)
		}
		if c.SSH.User == "" {
			return fmt.Errorf("ssh user is required: %w", ErrNotValid)
		}
	case RuntimeKindContainer:
		if c.Container == nil {
			return fmt.Errorf("container runtime configuration is required: %w", ErrNotValid)
		}
		if c.SSH != nil {
			return fmt.Errorf("only one runtime can be configured at a time: %w", ErrNotValid)
		}
		if c.Container.Image == "" && c.Container.ContainerName == "" {
			return fmt.Errorf("container image or container name is required: %w", ErrNotValid)
		}
	default:
		return fmt.Errorf("unknown runtime kind %q: %w", c.Kind, ErrNotValid)
	}

	return nil
}

// Validate validates the workspace.
func (w *Workspace) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if w.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}
	if w.ProjectDir == "" {
		return fmt.Errorf("project dir is required: %w", ErrNotValid)
	}

	return w.Runtime.Validate()
}
