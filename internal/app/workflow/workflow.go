package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slok/iacore/internal/app/exec"
	"github.com/slok/iacore/internal/app/taskcreate"
	"github.com/slok/iacore/internal/llm"
	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/project"
	"github.com/slok/iacore/internal/watch"
)

// CommitInfoCommand prints the hash and subject of the last commit.
const CommitInfoCommand = "git log -1 --pretty=format:'%H %s'"

// Analyzer analyzes the project and its file changes.
type Analyzer interface {
	AnalyzeProject(ctx context.Context) model.Analysis
	AnalyzeFileChange(ctx context.Context, ev model.FileEvent) model.Impact
}

// TaskCreator appends tasks to the queue.
type TaskCreator interface {
	Create(ctx context.Context, req taskcreate.Request) (*model.Task, error)
}

// DispatcherConfig is the configuration for the workflow dispatcher.
type DispatcherConfig struct {
	// Events are the file changes, optional.
	Events   <-chan model.FileEvent
	Analyzer Analyzer
	Gateway  llm.Completer
	Executor exec.Executor
	Tasks    TaskCreator
	State    *project.State
	Ignore   *watch.Matcher
	// OnFileChange are the actions run for high severity file changes.
	OnFileChange []string
	// OnGitCommit are the actions run when the HEAD commit changes.
	OnGitCommit []string
	AutoAnalyze bool
	// AutoExecute allows enqueue_tasks to create tasks.
	AutoExecute       bool
	ReanalyzeInterval time.Duration
	// CheckInterval is the period of the re-analysis and commit checks.
	CheckInterval time.Duration
	HeadCommit    func(root string) (string, error)
	Logger        log.Logger
	Now           func() time.Time
}

func (c *DispatcherConfig) defaults() error {
	if c.Analyzer == nil {
		return fmt.Errorf("analyzer is required")
	}
	if c.Gateway == nil {
		return fmt.Errorf("gateway is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Tasks == nil {
		return fmt.Errorf("task creator is required")
	}
	if c.State == nil {
		return fmt.Errorf("project state is required")
	}
	if c.Ignore == nil {
		m, err := watch.NewMatcher(model.DefaultIgnorePatterns)
		if err != nil {
			return err
		}
		c.Ignore = m
	}
	if c.ReanalyzeInterval <= 0 {
		c.ReanalyzeInterval = 30 * time.Minute
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Second
	}
	if c.HeadCommit == nil {
		c.HeadCommit = project.HeadCommit
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Workflow"})
	return nil
}

// Dispatcher reacts to file changes, commits and the re-analysis timer running
// the configured workflows. It's not safe for concurrent use, Run serializes
// every trigger.
type Dispatcher struct {
	events            <-chan model.FileEvent
	analyzer          Analyzer
	gateway           llm.Completer
	executor          exec.Executor
	tasks             TaskCreator
	state             *project.State
	ignore            *watch.Matcher
	onFileChange      []model.WorkflowStep
	onGitCommit       []model.WorkflowStep
	autoAnalyze       bool
	autoExecute       bool
	reanalyzeInterval time.Duration
	checkInterval     time.Duration
	headCommit        func(root string) (string, error)
	lastHead          string
	logger            log.Logger
	now               func() time.Time
}

// NewDispatcher creates a new workflow dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Dispatcher{
		events:            cfg.Events,
		analyzer:          cfg.Analyzer,
		gateway:           cfg.Gateway,
		executor:          cfg.Executor,
		tasks:             cfg.Tasks,
		state:             cfg.State,
		ignore:            cfg.Ignore,
		onFileChange:      model.NewWorkflow(cfg.OnFileChange),
		onGitCommit:       model.NewWorkflow(cfg.OnGitCommit),
		autoAnalyze:       cfg.AutoAnalyze,
		autoExecute:       cfg.AutoExecute,
		reanalyzeInterval: cfg.ReanalyzeInterval,
		checkInterval:     cfg.CheckInterval,
		headCommit:        cfg.HeadCommit,
		logger:            cfg.Logger,
		now:               cfg.Now,
	}

	for _, s := range append(append([]model.WorkflowStep{}, d.onFileChange...), d.onGitCommit...) {
		if s.Action == model.WorkflowActionUnknown {
			d.logger.Warningf("Unknown workflow action %q, it will be skipped", s.Name)
		}
	}

	return d, nil
}

// Prepare runs the first periodic checks, so the project analysis is ready
// before any task is planned.
func (d *Dispatcher) Prepare(ctx context.Context) {
	d.Tick(ctx)
}

// Run handles file events and periodic checks until the context ends.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Infof("Workflow dispatcher started")
	d.Tick(ctx)

	ticker := time.NewTicker(d.checkInterval)
	defer ticker.Stop()

	events := d.events
	for {
		select {
		case <-ctx.Done():
			d.logger.Infof("Workflow dispatcher stopped")
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.HandleEvent(ctx, ev)

		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs the periodic checks: project re-analysis and commit detection.
func (d *Dispatcher) Tick(ctx context.Context) {
	if d.autoAnalyze && d.state.ShouldReanalyze(d.now(), d.reanalyzeInterval) {
		d.logger.Infof("Analyzing project")
		d.analyzer.AnalyzeProject(ctx)
	}

	d.checkCommit(ctx)
}

// HandleEvent handles a single file change. Ignored paths do no work, only
// high severity changes run the file change workflow.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev model.FileEvent) {
	if d.ignore.Match(ev.Path) {
		return
	}
	d.logger.Debugf("File %s: %s", ev.Type, ev.Path)

	impact := d.analyzer.AnalyzeFileChange(ctx, ev)
	if impact.Severity != model.SeverityHigh {
		return
	}

	d.logger.Warningf("High impact change detected in %s", ev.Path)
	d.runWorkflow(ctx, model.WorkflowTriggerFileChange, d.onFileChange, &actionData{event: &ev, impact: impact})
}

func (d *Dispatcher) checkCommit(ctx context.Context) {
	head, err := d.headCommit(d.state.Root())
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			d.logger.Warningf("Could not read git HEAD: %s", err)
		}
		return
	}

	prev := d.lastHead
	d.lastHead = head
	if prev == "" || prev == head {
		return
	}

	d.logger.Infof("New commit detected: %s", head)
	d.runWorkflow(ctx, model.WorkflowTriggerGitCommit, d.onGitCommit, &actionData{commit: head, impact: model.DefaultImpact()})
}

// actionData is shared by the actions of a workflow run.
type actionData struct {
	event  *model.FileEvent
	impact model.Impact
	commit string
	// commitInfo is set by analyze_commit.
	commitInfo string
}

func (d *Dispatcher) runWorkflow(ctx context.Context, trigger model.WorkflowTrigger, steps []model.WorkflowStep, data *actionData) {
	for _, s := range steps {
		if ctx.Err() != nil {
			return
		}

		logger := d.logger.WithValues(log.Kv{"trigger": trigger, "action": s.Name})
		logger.Infof("Workflow action: %s", s.Name)

		switch s.Action {
		case model.WorkflowActionDetectImpact:
			// The impact is detected before dispatching.
		case model.WorkflowActionAnalyzeContext:
			d.analyzer.AnalyzeProject(ctx)
		case model.WorkflowActionAnalyzeCommit:
			d.analyzeCommit(ctx, logger, data)
		case model.WorkflowActionSuggestImprovements:
			d.suggestImprovements(ctx, logger, data)
		case model.WorkflowActionEnqueueTasks:
			d.enqueueTasks(ctx, logger, data)
		default:
			logger.Warningf("Unknown action: %s", s.Name)
		}
	}
}

func (d *Dispatcher) analyzeCommit(ctx context.Context, logger log.Logger, data *actionData) {
	// Shutdown doesn't kill the command, it's bounded by its own timeout.
	res := d.executor.Execute(context.WithoutCancel(ctx), exec.Request{Command: CommitInfoCommand, WorkingDir: d.state.Root()})
	if !res.Success {
		logger.Warningf("Could not get last commit: %s", res.Error)
		return
	}

	data.commitInfo = strings.TrimSpace(res.Output)
	logger.Infof("Last commit: %s", data.commitInfo)
}

func (d *Dispatcher) suggestImprovements(ctx context.Context, logger log.Logger, data *actionData) {
	impact, err := json.Marshal(data.impact)
	if err != nil {
		impact = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("Analyze this code change and suggest improvements:\n\n")
	if data.event != nil {
		fmt.Fprintf(&b, "File: %s\n", data.event.Path)
	}
	if data.commitInfo != "" {
		fmt.Fprintf(&b, "Commit: %s\n", data.commitInfo)
	} else if data.commit != "" {
		fmt.Fprintf(&b, "Commit: %s\n", data.commit)
	}
	fmt.Fprintf(&b, "Impact: %s\n\nProvide 3 concrete suggestions for improvement.\nSUGGESTIONS:", impact)

	suggestions := d.gateway.Complete(ctx, llm.Request{Prompt: b.String(), MaxTokens: 500, Temperature: 0.7})
	logger.Infof("Suggestions:\n%s", suggestions)
}

func (d *Dispatcher) enqueueTasks(ctx context.Context, logger log.Logger, data *actionData) {
	if len(data.impact.RequiredActions) == 0 {
		return
	}

	if !d.autoExecute {
		for _, a := range data.impact.RequiredActions {
			logger.Infof("Required action (auto execute disabled): %s", a)
		}
		return
	}

	for _, a := range data.impact.RequiredActions {
		t, err := d.tasks.Create(ctx, taskcreate.Request{Description: a, AutoExecute: true})
		if err != nil {
			logger.Errorf("Could not enqueue task %q: %s", a, err)
			continue
		}
		logger.Infof("Enqueued task %s: %s", t.ID, a)
	}
}
