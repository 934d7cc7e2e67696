package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/iacore/internal/model"
)

// JSONPrinter prints agent information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// taskListItem represents a task in the list output (subset of fields).
type taskListItem struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// taskOutput represents the full task output.
type taskOutput struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AutoExecute bool       `json:"auto_execute"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// execOutput represents a command result.
type execOutput struct {
	Command    string `json:"command"`
	Success    bool   `json:"success"`
	ExitCode   int    `json:"exit_code"`
	Output     string `json:"output"`
	Error      string `json:"error"`
	Blocked    bool   `json:"blocked,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintTaskList prints tasks in JSON format with a subset of fields.
func (j *JSONPrinter) PrintTaskList(tasks []model.Task) error {
	items := make([]taskListItem, len(tasks))
	for i, t := range tasks {
		items[i] = taskListItem{
			ID:          t.ID,
			Description: t.Description,
			Status:      string(t.Status),
			CreatedAt:   t.CreatedAt.UTC(),
		}
	}

	return j.encode(items)
}

// PrintTask prints the full task in JSON format.
func (j *JSONPrinter) PrintTask(task model.Task) error {
	output := taskOutput{
		ID:          task.ID,
		Description: task.Description,
		Status:      string(task.Status),
		AutoExecute: task.AutoExecute,
		Error:       task.Error,
		CreatedAt:   task.CreatedAt.UTC(),
	}

	if !task.UpdatedAt.IsZero() {
		utcTime := task.UpdatedAt.UTC()
		output.UpdatedAt = &utcTime
	}

	return j.encode(output)
}

// PrintExecResult prints a command result in JSON format.
func (j *JSONPrinter) PrintExecResult(command string, result model.ExecResult) error {
	return j.encode(execOutput{
		Command:    command,
		Success:    result.Success,
		ExitCode:   result.ExitCode,
		Output:     result.Output,
		Error:      result.Error,
		Blocked:    result.Blocked,
		TimedOut:   result.TimedOut,
		DurationMS: result.Duration.Milliseconds(),
	})
}

// PrintAnalysis prints a project analysis in JSON format.
func (j *JSONPrinter) PrintAnalysis(analysis model.Analysis) error {
	return j.encode(analysis)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
