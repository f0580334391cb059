// Package output provides formatters for CLI output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/florianilch/tasklet/internal/tasks"
)

// FormatTask formats a task line for the list command.
// Format: "{ID:>4}  [x] {TITLE}" followed by "  (due YYYY-MM-DD)" when a due date is set.
func FormatTask(w io.Writer, task tasks.Task) {
	mark := " "
	if task.Completed {
		mark = "x"
	}
	fmt.Fprintf(w, "%4d  [%s] %s", task.ID, mark, normalizeTitle(task.Title))
	if task.DueDate != nil {
		fmt.Fprintf(w, "  (due %s)", task.DueDate)
	}
	fmt.Fprintln(w)
}

// FormatTaskDetail formats every field of a task as aligned "key: value" lines.
func FormatTaskDetail(w io.Writer, task tasks.Task) error {
	due := "-"
	if task.DueDate != nil {
		due = task.DueDate.String()
	}
	created := "-"
	if !task.CreatedAt.IsZero() {
		created = task.CreatedAt.Local().Format(time.DateTime)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "id:\t%d\n", task.ID)
	fmt.Fprintf(tw, "title:\t%s\n", normalizeTitle(task.Title))
	fmt.Fprintf(tw, "description:\t%s\n", task.Description)
	fmt.Fprintf(tw, "completed:\t%t\n", task.Completed)
	fmt.Fprintf(tw, "due:\t%s\n", due)
	fmt.Fprintf(tw, "created:\t%s\n", created)
	return tw.Flush()
}

// FormatJSON writes v as indented JSON.
func FormatJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
