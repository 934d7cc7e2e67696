package printer

import "github.com/slok/iacore/internal/model"

// Printer knows how to print agent information in different formats.
type Printer interface {
	PrintTaskList(tasks []model.Task) error
	PrintTask(task model.Task) error
	PrintExecResult(command string, result model.ExecResult) error
	PrintAnalysis(analysis model.Analysis) error
	PrintMessage(msg string) error
}
