package job

import "fmt"

// Status is the lifecycle state of a job.
type Status int

const (
	// Pending: at least one dependency is not terminal yet.
	Pending Status = iota
	// Ready: every dependency reached a satisfying terminal state.
	Ready
	// Running: owned by a worker.
	Running
	Success
	Failure
	TimeoutHard
	TimeoutSoft
	// ErrDep: never ran because a dependency failed.
	ErrDep
	Cancelled
)

var statusNames = [...]string{
	Pending:     "PENDING",
	Ready:       "READY",
	Running:     "RUNNING",
	Success:     "SUCCESS",
	Failure:     "FAILURE",
	TimeoutHard: "TIMEOUT_HARD",
	TimeoutSoft: "TIMEOUT_SOFT",
	ErrDep:      "ERR_DEP",
	Cancelled:   "CANCELLED",
}

// Terminal lists the terminal states in reporting order.
var Terminal = []Status{Success, TimeoutSoft, Failure, TimeoutHard, ErrDep, Cancelled}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus maps a status name back to its value.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return Pending, fmt.Errorf("unknown job status %q", name)
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s >= Success
}

// Satisfies reports whether dependents may run after a dependency ended in s.
// A soft timeout is recorded but does not block downstream jobs.
func (s Status) Satisfies() bool {
	return s == Success || s == TimeoutSoft
}

// Failed reports whether s counts as a failure for exit codes and filters.
func (s Status) Failed() bool {
	return s.IsTerminal() && !s.Satisfies()
}

var transitions = map[Status][]Status{
	Pending: {Ready, ErrDep, Cancelled},
	// Failure straight from Ready covers unsatisfiable resource requests.
	Ready: {Running, Failure, ErrDep, Cancelled},
	// Running -> Ready is a bounded retry.
	Running: {Success, Failure, TimeoutHard, TimeoutSoft, Cancelled, Ready},
}

// Transition validates moving from one state to another.
func Transition(from, to Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("invalid job transition %s -> %s", from, to)
}
