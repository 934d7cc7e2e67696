package taskengine

import (
	"fmt"
	"strings"

	"github.com/slok/iacore/internal/app/analyze"
	"github.com/slok/iacore/internal/llm"
	"github.com/slok/iacore/internal/model"
)

// SkipSentinel is the fallback response meaning there is no alternative.
const SkipSentinel = "SKIP"

// ParsePlan splits a model response into commands, one per non blank line.
// Comment lines and markdown fence lines are dropped.
func ParsePlan(response string) []string {
	var cmds []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}
		cmds = append(cmds, line)
	}

	return cmds
}

func planRequest(projectType string, analysis model.Analysis, task model.Task) llm.Request {
	prompt := fmt.Sprintf(`You are an AI agent managing a %s project.

PROJECT CONTEXT:
%s

TASK:
%s

Generate a list of shell commands to complete this task.
Return ONLY the commands, one per line, with no explanation.
Commands will be executed non-interactively from the project root.

COMMANDS:`, projectType, analyze.ContextJSON(analysis), task.Description)

	return llm.Request{Prompt: prompt, MaxTokens: 500, Temperature: 0.7}
}

func fallbackRequest(command, errText string) llm.Request {
	prompt := fmt.Sprintf(`The command failed:
Command: %s
Error: %s

Provide ONE alternative command to achieve the same goal, or return "%s" if not possible.
ALTERNATIVE:`, command, errText, SkipSentinel)

	return llm.Request{Prompt: prompt, MaxTokens: 500, Temperature: 0.7}
}

// parseFallback returns the alternative command of a fallback response, false
// when the step must be abandoned.
func parseFallback(response string) (string, bool) {
	response = strings.TrimSpace(response)
	if response == "" || response == SkipSentinel || llm.IsFallback(response) {
		return "", false
	}

	cmds := ParsePlan(response)
	if len(cmds) == 0 || cmds[0] == SkipSentinel {
		return "", false
	}

	return cmds[0], true
}
