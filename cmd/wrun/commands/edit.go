package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/wrun/internal/app/edit"
)

type EditCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID   string
	path       string
	oldString  string
	newString  string
	replaceAll bool
	startLine  int
	endLine    int
	content    string
	planMode   bool
}

// NewEditCommand returns the edit command.
func NewEditCommand(rootCmd *RootCommand, app *kingpin.Application) *EditCommand {
	c := &EditCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("edit", "Edit a file in a workspace.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)
	c.Cmd.Arg("path", "File path, relative to the workspace project directory.").Required().StringVar(&c.path)
	c.Cmd.Flag("old", "Exact string to replace.").StringVar(&c.oldString)
	c.Cmd.Flag("new", "Replacement string.").StringVar(&c.newString)
	c.Cmd.Flag("all", "Replace every occurrence instead of requiring a unique match.").BoolVar(&c.replaceAll)
	c.Cmd.Flag("start-line", "First line of the range to replace (1-based).").IntVar(&c.startLine)
	c.Cmd.Flag("end-line", "Last line of the range to replace (inclusive).").IntVar(&c.endLine)
	c.Cmd.Flag("content", "Replacement content for the line range.").StringVar(&c.content)
	c.Cmd.Flag("plan-mode", "Restrict edits to the plan file.").BoolVar(&c.planMode)

	return c
}

func (c EditCommand) Name() string { return c.Cmd.FullCommand() }

func (c EditCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	transform, err := c.transform()
	if err != nil {
		return err
	}

	repo, err := newRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	workspace, err := repo.GetWorkspaceByName(ctx, c.nameOrID)
	if err != nil {
		workspace, err = repo.GetWorkspace(ctx, c.nameOrID)
		if err != nil {
			return fmt.Errorf("could not find workspace: %w", err)
		}
	}

	rt, err := newRuntimeFromConfig(*workspace, logger)
	if err != nil {
		return fmt.Errorf("could not create runtime: %w", err)
	}
	defer rt.Close()

	svc, err := edit.NewService(edit.ServiceConfig{
		Workspace: *workspace,
		Runtime:   rt,
		PlanMode:  c.planMode,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	result, err := svc.Apply(ctx, edit.Request{
		Path:      c.path,
		Transform: transform,
	})
	if err != nil {
		return fmt.Errorf("could not edit file: %w", err)
	}

	if result.Warning != "" {
		fmt.Fprintf(c.rootCmd.Stderr, "wrun: warning: %s\n", result.Warning)
	}
	io.WriteString(c.rootCmd.Stdout, result.Diff)

	return nil
}

// transform picks the editing strategy from the flags: string replacement or
// line-range replacement, never both.
func (c EditCommand) transform() (edit.TransformFunc, error) {
	lineMode := c.startLine > 0 || c.endLine > 0
	stringMode := c.oldString != ""

	switch {
	case lineMode && stringMode:
		return nil, fmt.Errorf("--old and --start-line/--end-line are mutually exclusive")
	case lineMode:
		return edit.ReplaceLines(c.startLine, c.endLine, c.content), nil
	case stringMode:
		return edit.StringReplace(c.oldString, c.newString, c.replaceAll), nil
	default:
		return nil, fmt.Errorf("either --old or --start-line/--end-line is required")
	}
}
