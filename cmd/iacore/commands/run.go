package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/iacore/internal/app/analyze"
	"github.com/slok/iacore/internal/app/taskcreate"
	"github.com/slok/iacore/internal/app/taskengine"
	"github.com/slok/iacore/internal/app/workflow"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/project"
	"github.com/slok/iacore/internal/watch"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	dryRun   bool
	noWatch  bool
	envSpecs []string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the agent: task engine, file watcher and workflows.")
	c.Cmd.Flag("dry-run", "Plan tasks but don't execute any command.").BoolVar(&c.dryRun)
	c.Cmd.Flag("no-watch", "Disable the file watcher.").BoolVar(&c.noWatch)
	c.Cmd.Flag("env", "Environment variables for executed commands (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	root, err := c.rootCmd.ProjectRoot()
	if err != nil {
		return err
	}

	cfg, err := c.rootCmd.LoadConfig(ctx, root)
	if err != nil {
		return err
	}

	repos, err := newRepositories(cfg, root, logger)
	if err != nil {
		return err
	}
	defer repos.Close()

	gateway, err := newGateway(cfg, repos.Cache, logger)
	if err != nil {
		return err
	}

	executor, err := newExecutor(cfg, root, executorOptions{DryRun: c.dryRun, EnvSpecs: c.envSpecs}, logger)
	if err != nil {
		return err
	}

	state := project.NewState(root)

	ignore, err := watch.NewMatcher(cfg.Agent.IgnorePatterns)
	if err != nil {
		return fmt.Errorf("invalid ignore patterns: %w", err)
	}

	analyzer, err := analyze.NewService(analyze.ServiceConfig{
		Gateway: gateway,
		State:   state,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create analyzer: %w", err)
	}

	creator, err := taskcreate.NewService(taskcreate.ServiceConfig{
		Repository: repos.Tasks,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task creator: %w", err)
	}

	engine, err := taskengine.NewService(taskengine.ServiceConfig{
		Repository:   repos.Tasks,
		Gateway:      gateway,
		Executor:     executor,
		State:        state,
		PollInterval: cfg.Agent.PollInterval,
		ErrorBackoff: cfg.Agent.ErrorBackoff,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task engine: %w", err)
	}

	var watcher *watch.Watcher
	var events <-chan model.FileEvent
	if cfg.Agent.WatchMode && !c.noWatch {
		watcher, err = watch.NewWatcher(watch.WatcherConfig{
			Root:   root,
			Ignore: ignore,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create file watcher: %w", err)
		}
		events = watcher.Events()
	}

	dispatcher, err := workflow.NewDispatcher(workflow.DispatcherConfig{
		Events:            events,
		Analyzer:          analyzer,
		Gateway:           gateway,
		Executor:          executor,
		Tasks:             creator,
		State:             state,
		Ignore:            ignore,
		OnFileChange:      cfg.Workflows.OnFileChange,
		OnGitCommit:       cfg.Workflows.OnGitCommit,
		AutoAnalyze:       cfg.Agent.AutoAnalyze,
		AutoExecute:       cfg.Agent.AutoExecute,
		ReanalyzeInterval: cfg.Agent.ReanalyzeInterval,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("could not create workflow dispatcher: %w", err)
	}

	// Tasks are planned with the project analysis as context.
	dispatcher.Prepare(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group

	// Task engine.
	{
		g.Add(
			func() error {
				return engine.Run(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Workflow dispatcher.
	{
		g.Add(
			func() error {
				return dispatcher.Run(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// File watcher.
	if watcher != nil {
		g.Add(
			func() error {
				return watcher.Run(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Pause and resume signals.
	{
		g.Add(
			func() error {
				return handlePauseSignals(ctx, engine, logger)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	logger.Infof("Agent running on %s (sandbox: %s, storage: %s, dry run: %t)", root, cfg.Executor.Sandbox, cfg.Storage.Backend, c.dryRun)
	if err := g.Run(); err != nil {
		return err
	}
	logger.Infof("Agent stopped")

	return nil
}

// pauser is the part of the task engine driven by the pause signals.
type pauser interface {
	Pause()
	Resume()
}
