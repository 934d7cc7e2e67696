package model

// WorkflowAction is a known step of a configured workflow.
type WorkflowAction int

const (
	// WorkflowActionUnknown is the no-op variant unknown action names resolve to.
	WorkflowActionUnknown WorkflowAction = iota
	WorkflowActionDetectImpact
	WorkflowActionAnalyzeContext
	WorkflowActionAnalyzeCommit
	WorkflowActionSuggestImprovements
	WorkflowActionEnqueueTasks
)

var workflowActionNames = map[string]WorkflowAction{
	"detect_impact":        WorkflowActionDetectImpact,
	"analyze_context":      WorkflowActionAnalyzeContext,
	"analyze_commit":       WorkflowActionAnalyzeCommit,
	"suggest_improvements": WorkflowActionSuggestImprovements,
	"enqueue_tasks":        WorkflowActionEnqueueTasks,
}

// ParseWorkflowAction resolves an action name, unknown names return WorkflowActionUnknown.
func ParseWorkflowAction(name string) WorkflowAction {
	return workflowActionNames[name]
}

func (w WorkflowAction) String() string {
	for name, a := range workflowActionNames {
		if a == w {
			return name
		}
	}
	return "unknown"
}

// WorkflowTrigger is the source that starts a workflow.
type WorkflowTrigger string

const (
	WorkflowTriggerFileChange WorkflowTrigger = "on_file_change"
	WorkflowTriggerGitCommit  WorkflowTrigger = "on_git_commit"
)

// WorkflowStep is a configured workflow action, keeping the name it was configured with.
type WorkflowStep struct {
	Name   string
	Action WorkflowAction
}

// NewWorkflow resolves an ordered list of action names into workflow steps.
func NewWorkflow(names []string) []WorkflowStep {
	steps := make([]WorkflowStep, 0, len(names))
	for _, n := range names {
		steps = append(steps, WorkflowStep{Name: n, Action: ParseWorkflowAction(n)})
	}
	return steps
}
