package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/iacore/internal/app/analyze"
	"github.com/slok/iacore/internal/project"
)

type AnalyzeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	noCache bool
	format  string
}

// NewAnalyzeCommand returns the analyze command.
func NewAnalyzeCommand(rootCmd *RootCommand, app *kingpin.Application) *AnalyzeCommand {
	c := &AnalyzeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("analyze", "Analyze the project once with the language model.")
	c.Cmd.Flag("no-cache", "Don't use the cached responses.").BoolVar(&c.noCache)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c AnalyzeCommand) Name() string { return c.Cmd.FullCommand() }

func (c AnalyzeCommand) Run(ctx context.Context) error {
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

	svc, err := analyze.NewService(analyze.ServiceConfig{
		Gateway: gateway,
		State:   project.NewState(root),
		NoCache: c.noCache,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	analysis := svc.AnalyzeProject(ctx)

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintAnalysis(analysis); err != nil {
		return fmt.Errorf("could not print analysis: %w", err)
	}

	return nil
}
