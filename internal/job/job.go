// Package job holds the unit of scheduling: one concrete, fully parameterized
// execution derived from a test expression and one point of its criterion
// matrix, together with the result record published once it is terminal.
package job

import (
	"time"

	"github.com/vk/benchgrid/internal/jobid"
)

// Phase tells which part of a test expression a job executes.
type Phase string

const (
	PhaseBuild Phase = "build"
	PhaseRun   Phase = "run"
)

// Attributes are the per-TE execution switches.
type Attributes struct {
	CopyInput      bool `json:"copy_input"`
	CopyOutput     bool `json:"copy_output"`
	CommandWrap    bool `json:"command_wrap"`
	PathResolution bool `json:"path_resolution"`
}

// DefaultAttributes returns the values used when a descriptor omits them.
func DefaultAttributes() Attributes {
	return Attributes{CommandWrap: true, PathResolution: true}
}

// Exec is everything the execution engine needs to launch a job.
type Exec struct {
	// Prelude lines run before the command (package manager loads).
	Prelude []string
	// Env holds KEY=VALUE pairs exported for the command.
	Env     []string
	Command string
	// Dir is the working directory, SrcDir the TE source directory.
	Dir    string
	SrcDir string
}

// MatchRule is a named regex whose presence in the output must equal Expect.
type MatchRule struct {
	Name   string
	Expr   string
	Expect bool
}

// AnalysisRule names an analysis function and its keyword arguments.
type AnalysisRule struct {
	Method string
	Args   map[string]any
}

// TimeRule is the optional expected timing window.
type TimeRule struct {
	Mean      time.Duration
	Tolerance time.Duration
}

// Validation gathers every rule the classifier applies.
type Validation struct {
	ExpectExit int
	Time       *TimeRule
	Matches    []MatchRule
	Analysis   *AnalysisRule
	Script     string
}

// MetricRule extracts values from the output with a regex.
type MetricRule struct {
	Name   string
	Key    string
	Unique bool
}

// Request is the resource demand of a job on the machine.
type Request struct {
	Nodes int `json:"nodes"`
	Cores int `json:"cores"`
}

// Job is a single vertex of the run graph.
type Job struct {
	// ID is the arena index, assigned by the graph builder.
	ID    int
	Name  jobid.Name
	Phase Phase

	Groups    []string
	Tags      []string
	DependsOn []string
	// Combination maps each active criterion to its raw value.
	Combination map[string]string

	Exec        Exec
	Attributes  Attributes
	Validation  Validation
	Metrics     []MetricRule
	Artifacts   map[string]string
	Resources   Request
	SoftTimeout time.Duration
	HardTimeout time.Duration

	// Warnings collects non-fatal problems (plugin errors, dropped criteria).
	Warnings []string

	// State below is owned by the scheduler coordinator.
	Status   Status
	Attempts int
	Result   Result
}

// Result is filled by the execution engine and the classifier.
type Result struct {
	ExitCode  int
	Start     time.Time
	End       time.Time
	Elapsed   time.Duration
	Output    string
	Metrics   map[string][]string
	Artifacts map[string]string
	// Reason explains a non-success status in a few words.
	Reason string
}

// FQName returns the canonical job name.
func (j *Job) FQName() string {
	return j.Name.String()
}

// HasTag reports whether the job carries tag.
func (j *Job) HasTag(tag string) bool {
	for _, t := range j.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Warn attaches a non-fatal problem to the job.
func (j *Job) Warn(msg string) {
	j.Warnings = append(j.Warnings, msg)
}
