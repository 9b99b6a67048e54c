package publish

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vk/benchgrid/internal/job"
)

// PrintPolicy selects which job outputs are echoed to the console.
type PrintPolicy string

const (
	PrintNone   PrintPolicy = "none"
	PrintErrors PrintPolicy = "errors"
	PrintAll    PrintPolicy = "all"
)

// ParsePrintPolicy validates a --print value.
func ParsePrintPolicy(s string) (PrintPolicy, error) {
	switch p := PrintPolicy(strings.ToLower(s)); p {
	case PrintNone, PrintErrors, PrintAll:
		return p, nil
	case "":
		return PrintNone, nil
	default:
		return "", fmt.Errorf("invalid print policy %q (want none, errors or all)", s)
	}
}

// Console prints one line per terminal job, followed by its output when the
// policy and the filter ask for it.
type Console struct {
	w      io.Writer
	policy PrintPolicy
	filter job.TagFilter
	color  bool
}

func NewConsole(w io.Writer, policy PrintPolicy, filter job.TagFilter, color bool) *Console {
	return &Console{w: w, policy: policy, filter: filter, color: color}
}

func (c *Console) Publish(_ context.Context, j *job.Job) error {
	line := fmt.Sprintf("%-12s %8s  %s", c.status(j.Status), j.Result.Elapsed.Round(10*time.Millisecond), j.FQName())
	if j.Result.Reason != "" && j.Status != job.Success {
		line += "  (" + j.Result.Reason + ")"
	}
	if _, err := fmt.Fprintln(c.w, line); err != nil {
		return err
	}
	if !c.printOutput(j) || j.Result.Output == "" {
		return nil
	}
	for _, l := range strings.Split(strings.TrimRight(j.Result.Output, "\n"), "\n") {
		if _, err := fmt.Fprintln(c.w, "    | "+l); err != nil {
			return err
		}
	}
	return nil
}

func (c *Console) printOutput(j *job.Job) bool {
	if !c.filter.Match(j) {
		return false
	}
	switch c.policy {
	case PrintAll:
		return true
	case PrintErrors:
		return j.Status.Failed()
	default:
		return false
	}
}

func (c *Console) status(s job.Status) string {
	if !c.color {
		return s.String()
	}
	return statusColors(s).Sprint(s.String())
}

func statusColors(s job.Status) text.Colors {
	switch s {
	case job.Success:
		return text.Colors{text.FgGreen}
	case job.TimeoutSoft:
		return text.Colors{text.FgYellow}
	case job.ErrDep, job.Cancelled:
		return text.Colors{text.FgHiBlack}
	default:
		return text.Colors{text.FgRed, text.Bold}
	}
}
