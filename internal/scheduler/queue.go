package scheduler

import (
	"container/heap"

	"github.com/vk/benchgrid/internal/job"
)

// readyQueue orders ready jobs by requested nodes, largest first, then by
// arena index so that equal requests keep their declaration order.
type readyQueue []*job.Job

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].Resources.Nodes != q[j].Resources.Nodes {
		return q[i].Resources.Nodes > q[j].Resources.Nodes
	}
	return q[i].ID < q[j].ID
}

func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) { *q = append(*q, x.(*job.Job)) }

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return j
}

func (q *readyQueue) push(j *job.Job) { heap.Push(q, j) }

func (q *readyQueue) pop() *job.Job { return heap.Pop(q).(*job.Job) }
