package dag

import (
	"bufio"
	"fmt"
	"io"

	"github.com/vk/benchgrid/internal/job"
)

// DOT writes the graph in Graphviz format. Build jobs are drawn as boxes.
func (g *Graph) DOT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph benchgrid {")
	fmt.Fprintln(bw, "  rankdir=LR;")
	for _, j := range g.Jobs {
		shape := "ellipse"
		if j.Phase == job.PhaseBuild {
			shape = "box"
		}
		fmt.Fprintf(bw, "  %q [shape=%s];\n", j.FQName(), shape)
	}
	for i, j := range g.Jobs {
		for _, d := range g.deps[i] {
			fmt.Fprintf(bw, "  %q -> %q;\n", g.Jobs[d].FQName(), j.FQName())
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
