// Package scheduler drives a dependency graph of jobs to completion.
//
// A single coordinator goroutine owns every job state. It admits ready jobs
// in priority order while workers and machine resources are available, hands
// them to a fixed pool of workers, and processes completions before any new
// admission. A failing job marks all of its transitive dependents ERR_DEP in
// one pass; they never run.
//
// # Lifecycle
//
//	PENDING -> READY -> RUNNING -> SUCCESS | FAILURE | TIMEOUT_HARD | TIMEOUT_SOFT | CANCELLED
//	PENDING -> ERR_DEP | CANCELLED
//	READY   -> FAILURE (request larger than the machine) | ERR_DEP | CANCELLED
//	RUNNING -> READY (bounded retry of a FAILURE)
//
// The run ends once every job is terminal. Cancelling the context, or
// reaching the global timeout, cancels every job that has not started and
// interrupts the running ones.
package scheduler
