package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/slok/iacore/internal/llm"
	"github.com/slok/iacore/internal/log"
	"github.com/slok/iacore/internal/model"
	"github.com/slok/iacore/internal/project"
)

const (
	treeDepth = 2
	treeLimit = 50
)

// ServiceConfig is the configuration for the analyze service.
type ServiceConfig struct {
	Gateway llm.Completer
	State   *project.State
	// NoCache bypasses the response cache for the project analysis.
	NoCache bool
	Logger  log.Logger
	Now     func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Gateway == nil {
		return fmt.Errorf("gateway is required")
	}
	if c.State == nil {
		return fmt.Errorf("project state is required")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Analyze"})
	return nil
}

// Service asks the language model about the project and its changes.
type Service struct {
	gateway llm.Completer
	state   *project.State
	noCache bool
	logger  log.Logger
	now     func() time.Time
}

// NewService creates a new analyze service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		gateway: cfg.Gateway,
		state:   cfg.State,
		noCache: cfg.NoCache,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}, nil
}

// AnalyzeProject detects the project type, analyzes the project and stores
// both in the project state. Failures end in the default analysis.
func (s *Service) AnalyzeProject(ctx context.Context) model.Analysis {
	logger := s.logger.WithCtxValues(ctx)
	root := s.state.Root()

	detection, err := project.Detect(root)
	if err != nil {
		logger.Warningf("Could not detect project type: %s", err)
		detection = project.Detection{Type: project.TypeUnknown}
	}
	s.state.SetType(detection.Type)
	logger.Infof("Detected %s project (confidence: %.0f%%)", detection.Type, detection.Confidence*100)

	tree, err := project.FileTree(root, treeDepth, treeLimit)
	if err != nil {
		logger.Warningf("Could not list project files: %s", err)
	}

	prompt := fmt.Sprintf(`Analyze this %s project:

PROJECT STRUCTURE:
%s

Provide analysis in JSON format:
{
  "insights": ["insight1", "insight2", ...],
  "suggestions": ["suggestion1", ...],
  "priorities": ["high priority task1", ...],
  "risks": ["potential risk1", ...]
}

JSON:`, detection.Type, strings.Join(tree, "\n"))

	resp := s.gateway.Complete(ctx, llm.Request{Prompt: prompt, MaxTokens: 400, Temperature: 0.5, NoCache: s.noCache})

	analysis := model.DefaultAnalysis()
	if err := decodeStrict(resp, analysisSchema, &analysis); err != nil {
		logger.Warningf("Could not parse project analysis, using defaults: %s", err)
		analysis = model.DefaultAnalysis()
	}
	analysis = normalizeAnalysis(analysis)

	s.state.SetAnalysis(analysis, s.now())
	logger.Infof("Analysis complete: %d insights", len(analysis.Insights))

	return analysis
}

// AnalyzeFileChange classifies the impact of a file change, failures end in
// the default (low) impact.
func (s *Service) AnalyzeFileChange(ctx context.Context, ev model.FileEvent) model.Impact {
	logger := s.logger.WithCtxValues(ctx)

	prompt := fmt.Sprintf(`A file was %s:

File: %s
Project: %s

Assess the impact (JSON):
{
  "severity": "low|medium|high",
  "affected_components": [...],
  "required_actions": [...]
}

JSON:`, ev.Type, ev.Path, s.state.Type())

	resp := s.gateway.Complete(ctx, llm.Request{Prompt: prompt, MaxTokens: 200, Temperature: 0.3})

	impact := model.DefaultImpact()
	if err := decodeStrict(resp, impactSchema, &impact); err != nil {
		logger.Debugf("Could not parse impact of %s, using defaults: %s", ev.Path, err)
		return model.DefaultImpact()
	}
	if impact.AffectedComponents == nil {
		impact.AffectedComponents = []string{}
	}
	if impact.RequiredActions == nil {
		impact.RequiredActions = []string{}
	}

	return impact
}

// ContextJSON returns the latest analysis as indented JSON, used in prompts.
func ContextJSON(a model.Analysis) string {
	data, err := json.MarshalIndent(normalizeAnalysis(a), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func normalizeAnalysis(a model.Analysis) model.Analysis {
	for _, l := range []*[]string{&a.Insights, &a.Suggestions, &a.Priorities, &a.Risks} {
		if *l == nil {
			*l = []string{}
		}
	}
	return a
}
