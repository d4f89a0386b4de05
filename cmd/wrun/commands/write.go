package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/wrun/internal/app/fsops"
)

type WriteCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
	path     string
	content  string
}

// NewWriteCommand returns the write command.
func NewWriteCommand(rootCmd *RootCommand, app *kingpin.Application) *WriteCommand {
	c := &WriteCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("write", "Write a workspace file from stdin or --content.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)
	c.Cmd.Arg("path", "File path, relative to the workspace project directory.").Required().StringVar(&c.path)
	c.Cmd.Flag("content", "File content (reads stdin when unset).").StringVar(&c.content)

	return c
}

func (c WriteCommand) Name() string { return c.Cmd.FullCommand() }

func (c WriteCommand) Run(ctx context.Context) error {
	data := []byte(c.content)
	if c.content == "" {
		var err error
		data, err = io.ReadAll(c.rootCmd.Stdin)
		if err != nil {
			return fmt.Errorf("could not read stdin: %w", err)
		}
	}

	svc, err := newFSOpsService(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	err = svc.WriteFile(ctx, fsops.Request{WorkspaceNameOrID: c.nameOrID, Path: c.path}, data)
	if err != nil {
		return fmt.Errorf("could not write file: %w", err)
	}

	return nil
}
