package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/wrun/internal/app/exec"
	"github.com/slok/wrun/internal/model"
	envutil "github.com/slok/wrun/internal/utils/env"
)

type ExecCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID   string
	command    []string
	workingDir string
	envSpecs   []string
	timeout    int
}

// NewExecCommand returns the exec command.
func NewExecCommand(rootCmd *RootCommand, app *kingpin.Application) *ExecCommand {
	c := &ExecCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("exec", "Execute a shell command in a workspace.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)
	c.Cmd.Arg("command", "Command to execute (use -- before command).").Required().StringsVar(&c.command)
	c.Cmd.Flag("workdir", "Working directory for command execution.").Short('w').StringVar(&c.workingDir)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("timeout", "Command timeout in seconds (0 means no timeout).").Short('t').IntVar(&c.timeout)

	return c
}

func (c ExecCommand) Name() string { return c.Cmd.FullCommand() }

func (c ExecCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cmdEnv, err := envutil.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}

	repo, err := newRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}

	hookEngine, err := newHookEngine(c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not create hook engine: %w", err)
	}

	svc, err := exec.NewService(exec.ServiceConfig{
		Repository:     repo,
		RuntimeFactory: newRuntimeFactory(logger),
		HookEngine:     hookEngine,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	result, err := svc.Run(ctx, exec.Request{
		WorkspaceNameOrID: c.nameOrID,
		Command:           strings.Join(c.command, " "),
		Opts: model.ExecOptions{
			WorkingDir:     c.workingDir,
			Env:            cmdEnv,
			TimeoutSeconds: c.timeout,
		},
	})
	if err != nil && !isHookFailure(err) {
		return fmt.Errorf("could not execute command: %w", err)
	}
	if err != nil {
		// The command ran, only the hook around it failed.
		fmt.Fprintf(c.rootCmd.Stderr, "wrun: %s\n", err)
	}

	printHookOutput(c.rootCmd.Stderr, result.Hook)

	if result.Exec == nil {
		os.Exit(1)
		return nil
	}

	io.WriteString(c.rootCmd.Stdout, result.Exec.Stdout)
	io.WriteString(c.rootCmd.Stderr, result.Exec.Stderr)

	// Exit with the command's exit code.
	os.Exit(result.Exec.ExitCode)
	return nil
}

func isHookFailure(err error) bool {
	return errors.Is(err, model.ErrHookTimeout) || errors.Is(err, model.ErrHookExitedNonZero)
}

// printHookOutput surfaces the hook's own output on stderr so it never mixes
// with the command's stdout.
func printHookOutput(w io.Writer, hookResult *model.HookResult) {
	if hookResult == nil {
		return
	}

	for _, out := range []string{hookResult.PreToolOutput, hookResult.PostToolOutput, hookResult.Stderr} {
		if out != "" {
			io.WriteString(w, out)
			if !strings.HasSuffix(out, "\n") {
				io.WriteString(w, "\n")
			}
		}
	}
}
