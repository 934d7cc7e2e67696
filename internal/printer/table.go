package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/slok/iacore/internal/model"
)

const descriptionMaxLen = 60

// TablePrinter prints agent information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTaskList prints tasks in a table format.
func (t *TablePrinter) PrintTaskList(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "ID\tSTATUS\tDESCRIPTION\tCREATED")

	// Print rows
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", task.ID, task.Status, shorten(task.Description, descriptionMaxLen), TimeAgo(task.CreatedAt))
	}

	return nil
}

// PrintTask prints the detailed task.
func (t *TablePrinter) PrintTask(task model.Task) error {
	fmt.Fprintf(t.writer, "ID:           %s\n", task.ID)
	fmt.Fprintf(t.writer, "Description:  %s\n", task.Description)
	fmt.Fprintf(t.writer, "Status:       %s\n", task.Status)
	fmt.Fprintf(t.writer, "Auto execute: %t\n", task.AutoExecute)
	fmt.Fprintf(t.writer, "Created:      %s\n", FormatTimestamp(task.CreatedAt))

	if !task.UpdatedAt.IsZero() {
		fmt.Fprintf(t.writer, "Updated:      %s\n", FormatTimestamp(task.UpdatedAt))
	}

	if task.Error != "" {
		fmt.Fprintf(t.writer, "Error:        %s\n", task.Error)
	}

	return nil
}

// PrintExecResult prints the command output followed by a result summary.
func (t *TablePrinter) PrintExecResult(command string, result model.ExecResult) error {
	if result.Output != "" {
		fmt.Fprint(t.writer, ensureNewline(result.Output))
	}
	if result.Error != "" {
		fmt.Fprint(t.writer, ensureNewline(result.Error))
	}

	state := "ok"
	switch {
	case result.Blocked:
		state = "blocked"
	case result.TimedOut:
		state = "timed out"
	case !result.Success:
		state = "failed"
	}

	fmt.Fprintf(t.writer, "\nCommand:   %s\n", command)
	fmt.Fprintf(t.writer, "Result:    %s (exit code %d)\n", state, result.ExitCode)
	fmt.Fprintf(t.writer, "Output:    %s\n", FormatBytes(int64(len(result.Output))))
	fmt.Fprintf(t.writer, "Duration:  %s\n", result.Duration.Round(time.Millisecond))

	return nil
}

// PrintAnalysis prints a project analysis grouped by section.
func (t *TablePrinter) PrintAnalysis(analysis model.Analysis) error {
	sections := []struct {
		title string
		items []string
	}{
		{"Insights", analysis.Insights},
		{"Suggestions", analysis.Suggestions},
		{"Priorities", analysis.Priorities},
		{"Risks", analysis.Risks},
	}

	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(t.writer)
		}
		fmt.Fprintf(t.writer, "%s:\n", s.title)
		if len(s.items) == 0 {
			fmt.Fprintln(t.writer, "  (none)")
			continue
		}
		for _, item := range s.items {
			fmt.Fprintf(t.writer, "  - %s\n", item)
		}
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func shorten(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
