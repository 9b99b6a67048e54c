package publish

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"github.com/vk/benchgrid/internal/job"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Summary renders the count of jobs per terminal status, then the list of
// jobs that did not succeed.
func Summary(w io.Writer, jobs []*job.Job, color bool) {
	counts := make(map[job.Status]int, len(job.Terminal))
	var failed []*job.Job
	for _, j := range jobs {
		counts[j.Status]++
		if j.Status != job.Success {
			failed = append(failed, j)
		}
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Run summary")
	tw.AppendHeader(table.Row{"Status", "Jobs"})
	for _, s := range job.Terminal {
		label := s.String()
		if color {
			label = statusColors(s).Sprint(label)
		}
		tw.AppendRow(table.Row{label, counts[s]})
	}
	tw.AppendFooter(table.Row{"Total", len(jobs)})
	tw.SetStyle(style(color))
	tw.Render()

	if len(failed) == 0 {
		return
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.AppendHeader(table.Row{"Job", "Status", "Reason"})
	for _, j := range failed {
		ft.AppendRow(table.Row{j.FQName(), j.Status.String(), j.Result.Reason})
	}
	ft.SetStyle(style(color))
	ft.Render()
}

func style(color bool) table.Style {
	if color {
		return table.StyleColoredBright
	}
	return table.StyleLight
}
