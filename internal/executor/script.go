package executor

import (
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/vk/benchgrid/internal/job"
)

// Script renders the shell script of e: package manager prelude, exported
// variables, change of directory, then the command itself.
func Script(e job.Exec) string {
	var b strings.Builder
	for _, line := range e.Prelude {
		b.WriteString(line)
		b.WriteString(" || exit 1\n")
	}
	for _, kv := range e.Env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			b.WriteString("export " + kv + "\n")
			continue
		}
		b.WriteString("export " + key + "=" + shellquote.Join(value) + "\n")
	}
	if e.Dir != "" {
		b.WriteString("cd " + shellquote.Join(e.Dir) + " || exit 1\n")
	}
	b.WriteString(e.Command)
	b.WriteString("\n")
	return b.String()
}
