package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/iacore/internal/app/taskcreate"
	"github.com/slok/iacore/internal/app/tasklist"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/storage"
)

// openTaskRepository opens the task queue of the project.
func openTaskRepository(ctx context.Context, rootCmd *RootCommand) (storage.TaskRepository, func() error, error) {
	root, err := rootCmd.ProjectRoot()
	if err != nil {
		return nil, nil, err
	}

	cfg, err := rootCmd.LoadConfig(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	repos, err := newRepositories(cfg, root, rootCmd.Logger)
	if err != nil {
		return nil, nil, err
	}

	return repos.Tasks, repos.Close, nil
}

type TaskAddCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	description []string
	autoExecute bool
	format      string
}

// NewTaskAddCommand returns the task add command.
func NewTaskAddCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskAddCommand {
	c := &TaskAddCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("add", "Append a task to the queue.")
	c.Cmd.Arg("description", "Natural language description of the task.").Required().StringsVar(&c.description)
	c.Cmd.Flag("auto-execute", "Mark the task as auto executable.").BoolVar(&c.autoExecute)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TaskAddCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskAddCommand) Run(ctx context.Context) error {
	repo, closeRepo, err := openTaskRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := taskcreate.NewService(taskcreate.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Create(ctx, taskcreate.Request{
		Description: strings.Join(c.description, " "),
		AutoExecute: c.autoExecute,
	})
	if err != nil {
		return fmt.Errorf("could not create task: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintTask(*task); err != nil {
		return fmt.Errorf("could not print task: %w", err)
	}

	return nil
}

type TaskListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	statusFilter string
	format       string
}

// NewTaskListCommand returns the task list command.
func NewTaskListCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskListCommand {
	c := &TaskListCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("list", "List the tasks in queue order.")
	c.Cmd.Flag("status", "Filter by status (pending, running, success, failed).").StringVar(&c.statusFilter)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TaskListCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskListCommand) Run(ctx context.Context) error {
	statusFilter, err := parseStatusFilter(c.statusFilter)
	if err != nil {
		return err
	}

	repo, closeRepo, err := openTaskRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := tasklist.NewService(tasklist.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	tasks, err := svc.List(ctx, tasklist.Request{StatusFilter: statusFilter})
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintTaskList(tasks); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}

func parseStatusFilter(s string) (*model.TaskStatus, error) {
	if s == "" {
		return nil, nil
	}

	status := model.TaskStatus(strings.ToLower(s))
	switch status {
	case model.TaskStatusPending, model.TaskStatusRunning, model.TaskStatusSuccess, model.TaskStatusFailed:
		return &status, nil
	}

	return nil, fmt.Errorf("invalid status filter: %s (must be: pending, running, success, failed)", s)
}

type TaskStatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id     string
	format string
}

// NewTaskStatusCommand returns the task status command.
func NewTaskStatusCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskStatusCommand {
	c := &TaskStatusCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("status", "Get the detailed status of a task.")
	c.Cmd.Arg("id", "Task ID.").Required().StringVar(&c.id)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TaskStatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskStatusCommand) Run(ctx context.Context) error {
	repo, closeRepo, err := openTaskRepository(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := tasklist.NewService(tasklist.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Get(ctx, c.id)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintTask(*task); err != nil {
		return fmt.Errorf("could not print task: %w", err)
	}

	return nil
}
