package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/iacore/internal/llm/provider"
	"github.com/slok/iacore/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the configuration, storage, language model and executor.")

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	groups := c.check(ctx)
	return printCheckGroups(c.rootCmd.Stdout, groups)
}

func (c DoctorCommand) check(ctx context.Context) []checkGroup {
	logger := c.rootCmd.Logger

	root, err := c.rootCmd.ProjectRoot()
	if err != nil {
		return []checkGroup{{name: "configuration", results: []model.CheckResult{errorCheck("project_dir", err)}}}
	}

	cfg, err := c.rootCmd.LoadConfig(ctx, root)
	if err != nil {
		return []checkGroup{{name: "configuration", results: []model.CheckResult{errorCheck("config_file", err)}}}
	}

	groups := []checkGroup{{
		name: "configuration",
		results: []model.CheckResult{{
			ID:      "config_file",
			Message: fmt.Sprintf("Loaded (storage: %s, sandbox: %s, provider: %s)", cfg.Storage.Backend, cfg.Executor.Sandbox, cfg.LLM.Provider),
			Status:  model.CheckStatusOK,
		}},
	}}

	// Storage.
	storageGroup := checkGroup{name: "storage"}
	repos, err := newRepositories(cfg, root, logger)
	if err != nil {
		storageGroup.results = append(storageGroup.results, errorCheck("task_queue", err))
	} else {
		defer repos.Close()

		tasks, err := repos.Tasks.ListTasks(ctx)
		if err != nil {
			storageGroup.results = append(storageGroup.results, errorCheck("task_queue", err))
		} else {
			storageGroup.results = append(storageGroup.results, model.CheckResult{
				ID:      "task_queue",
				Message: fmt.Sprintf("%d task(s) in queue", len(tasks)),
				Status:  model.CheckStatusOK,
			})
		}
	}
	groups = append(groups, storageGroup)

	// Language model.
	llmGroup := checkGroup{name: "llm"}
	backend, err := provider.New(provider.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		Endpoint:  cfg.LLM.Endpoint,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Logger:    logger,
	})
	if err != nil {
		llmGroup.results = append(llmGroup.results, errorCheck("llm_backend", err))
	} else {
		llmGroup.results = backend.Check(ctx)
	}
	groups = append(groups, llmGroup)

	// Executor.
	execGroup := checkGroup{name: "executor"}
	executor, err := newExecutor(cfg, root, executorOptions{}, logger)
	if err != nil {
		execGroup.results = append(execGroup.results, errorCheck("sandbox_helper", err))
	} else {
		execGroup.results = executor.Check(ctx)
	}
	groups = append(groups, execGroup)

	return groups
}

type checkGroup struct {
	name    string
	results []model.CheckResult
}

func errorCheck(id string, err error) model.CheckResult {
	return model.CheckResult{ID: id, Message: err.Error(), Status: model.CheckStatusError}
}

func printCheckGroups(out io.Writer, groups []checkGroup) error {
	totalErrors := 0
	totalWarnings := 0

	for _, g := range groups {
		fmt.Fprintf(out, "\nChecking %s...\n", g.name)
		for _, r := range g.results {
			fmt.Fprintf(out, "  %s %-20s %s\n", getStatusIcon(r.Status), r.ID, r.Message)
		}

		_, warnings, errors := model.CountByStatus(g.results)
		totalWarnings += warnings
		totalErrors += errors
	}

	// Summary
	fmt.Fprintln(out)
	if totalErrors == 0 && totalWarnings == 0 {
		fmt.Fprintln(out, "All checks passed!")
	} else {
		var summary []string
		if totalErrors > 0 {
			summary = append(summary, fmt.Sprintf("%d error(s)", totalErrors))
		}
		if totalWarnings > 0 {
			summary = append(summary, fmt.Sprintf("%d warning(s)", totalWarnings))
		}
		fmt.Fprintln(out, strings.Join(summary, ", "))
	}

	if totalErrors > 0 {
		return fmt.Errorf("preflight checks failed with %d error(s)", totalErrors)
	}

	return nil
}

func getStatusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}
