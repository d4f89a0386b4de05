package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/wrun/internal/app/fsops"
	"github.com/slok/wrun/internal/hook"
	"github.com/slok/wrun/internal/log"
	"github.com/slok/wrun/internal/storage"
	storageio "github.com/slok/wrun/internal/storage/io"
	"github.com/slok/wrun/internal/storage/memory"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug          bool
	NoLog          bool
	NoColor        bool
	LoggerType     string
	WorkspacesPath string
	HookPath       string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultWorkspacesPath := filepath.Join(homedir.HomeDir(), ".wrun", "workspaces.yaml")
	app.Flag("workspaces", "Path to the workspaces YAML file.").Envar("WRUN_WORKSPACES").Default(defaultWorkspacesPath).StringVar(&c.WorkspacesPath)
	app.Flag("hook", "Path to a hook executable that wraps tool execution.").Envar("WRUN_HOOK").StringVar(&c.HookPath)

	return c
}

// newRepository loads the workspaces file into an in-memory repository.
func newRepository(ctx context.Context, rootCmd *RootCommand) (storage.Repository, error) {
	workspacesPath := rootCmd.WorkspacesPath
	if !filepath.IsAbs(workspacesPath) {
		absPath, err := filepath.Abs(workspacesPath)
		if err != nil {
			return nil, fmt.Errorf("could not resolve workspaces file path: %w", err)
		}
		workspacesPath = absPath
	}

	loader := storageio.NewWorkspacesYAMLRepository(os.DirFS("/"))
	workspaces, err := loader.GetWorkspaces(ctx, workspacesPath[1:])
	if err != nil {
		return nil, fmt.Errorf("could not load workspaces: %w", err)
	}

	repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: rootCmd.Logger})
	if err != nil {
		return nil, err
	}
	for _, w := range workspaces {
		if err := repo.CreateWorkspace(ctx, w); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

// newFSOpsService wires the file operations service from the global configuration.
func newFSOpsService(ctx context.Context, rootCmd *RootCommand) (*fsops.Service, error) {
	repo, err := newRepository(ctx, rootCmd)
	if err != nil {
		return nil, err
	}

	svc, err := fsops.NewService(fsops.ServiceConfig{
		Repository:     repo,
		RuntimeFactory: newRuntimeFactory(rootCmd.Logger),
		Logger:         rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	return svc, nil
}

// newHookEngine creates the hook engine when a hook is configured, nil otherwise.
func newHookEngine(rootCmd *RootCommand) (*hook.Engine, error) {
	if rootCmd.HookPath == "" {
		return nil, nil
	}

	return hook.NewEngine(hook.EngineConfig{
		HookPath: rootCmd.HookPath,
		Logger:   rootCmd.Logger,
	})
}
