package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/iacore/internal/app/exec"
)

type ExecCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	command    []string
	workingDir string
	timeout    time.Duration
	envSpecs   []string
	dryRun     bool
	format     string
}

// NewExecCommand returns the exec command.
func NewExecCommand(rootCmd *RootCommand, app *kingpin.Application) *ExecCommand {
	c := &ExecCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("exec", "Execute a shell command through the safety filter and the sandbox.")
	c.Cmd.Arg("command", "Command to execute (use -- before command).").Required().StringsVar(&c.command)
	c.Cmd.Flag("workdir", "Working directory for command execution (defaults to the project root).").Short('w').StringVar(&c.workingDir)
	c.Cmd.Flag("timeout", "Command timeout (defaults to the configured executor timeout).").DurationVar(&c.timeout)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("dry-run", "Don't execute the command, only run the safety filter.").BoolVar(&c.dryRun)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ExecCommand) Name() string { return c.Cmd.FullCommand() }

func (c ExecCommand) Run(ctx context.Context) error {
	root, err := c.rootCmd.ProjectRoot()
	if err != nil {
		return err
	}

	cfg, err := c.rootCmd.LoadConfig(ctx, root)
	if err != nil {
		return err
	}

	svc, err := newExecutor(cfg, root, executorOptions{DryRun: c.dryRun, EnvSpecs: c.envSpecs}, c.rootCmd.Logger)
	if err != nil {
		return err
	}

	command := strings.Join(c.command, " ")
	result := svc.Execute(ctx, exec.Request{
		Command:    command,
		WorkingDir: c.workingDir,
		Timeout:    c.timeout,
	})

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintExecResult(command, result); err != nil {
		return fmt.Errorf("could not print result: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("command failed with exit code %d", result.ExitCode)
	}

	return nil
}
