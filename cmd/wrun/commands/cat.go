package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/wrun/internal/app/fsops"
)

type CatCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
	path     string
}

// NewCatCommand returns the cat command.
func NewCatCommand(rootCmd *RootCommand, app *kingpin.Application) *CatCommand {
	c := &CatCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("cat", "Print a workspace file on stdout.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)
	c.Cmd.Arg("path", "File path, relative to the workspace project directory.").Required().StringVar(&c.path)

	return c
}

func (c CatCommand) Name() string { return c.Cmd.FullCommand() }

func (c CatCommand) Run(ctx context.Context) error {
	svc, err := newFSOpsService(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	data, err := svc.ReadFile(ctx, fsops.Request{WorkspaceNameOrID: c.nameOrID, Path: c.path})
	if err != nil {
		return fmt.Errorf("could not read file: %w", err)
	}

	_, err = c.rootCmd.Stdout.Write(data)

	return err
}
