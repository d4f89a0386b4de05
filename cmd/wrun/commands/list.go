package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("list", "List configured workspaces.")

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	repo, err := newRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	workspaces, err := repo.ListWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("could not list workspaces: %w", err)
	}

	w := tabwriter.NewWriter(c.rootCmd.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tRUNTIME\tPROJECT DIR")
	for _, ws := range workspaces {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ws.Name, ws.ID, ws.Runtime.Kind, ws.ProjectDir)
	}

	return w.Flush()
}
