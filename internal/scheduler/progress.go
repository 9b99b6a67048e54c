package scheduler

import "github.com/vk/benchgrid/internal/job"

// Progress is a snapshot of job counts per status.
type Progress struct {
	Total    int            `json:"total"`
	Finished int            `json:"finished"`
	Counts   map[string]int `json:"counts"`
}

// Progress may be called from any goroutine. Counters are read one at a
// time, so a snapshot taken during a transition can be off by one.
func (s *Scheduler) Progress() Progress {
	p := Progress{Total: s.graph.Len(), Counts: make(map[string]int, len(s.counts))}
	for i := range s.counts {
		st := job.Status(i)
		n := int(s.counts[i].Load())
		p.Counts[st.String()] = n
		if st.IsTerminal() {
			p.Finished += n
		}
	}
	return p
}
