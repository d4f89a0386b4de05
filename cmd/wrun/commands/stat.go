package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/wrun/internal/app/fsops"
)

type StatCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
	path     string
}

// NewStatCommand returns the stat command.
func NewStatCommand(rootCmd *RootCommand, app *kingpin.Application) *StatCommand {
	c := &StatCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("stat", "Show file information for a workspace file.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)
	c.Cmd.Arg("path", "File path, relative to the workspace project directory.").Required().StringVar(&c.path)

	return c
}

func (c StatCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatCommand) Run(ctx context.Context) error {
	svc, err := newFSOpsService(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	stat, err := svc.StatFile(ctx, fsops.Request{WorkspaceNameOrID: c.nameOrID, Path: c.path})
	if err != nil {
		return fmt.Errorf("could not stat file: %w", err)
	}

	kind := "file"
	if stat.IsDir {
		kind = "directory"
	}
	fmt.Fprintf(c.rootCmd.Stdout, "%s\t%d\t%s\t%s\n", c.path, stat.SizeBytes, stat.ModTime.Format("2006-01-02T15:04:05Z07:00"), kind)

	return nil
}
