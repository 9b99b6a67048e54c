package job

import (
	"time"

	"github.com/vk/benchgrid/internal/jobid"
)

// Record is the serialized form of a terminal job consumed by publishers.
type Record struct {
	ID     RecordID     `json:"id"`
	Exec   string       `json:"exec"`
	Result RecordResult `json:"result"`
	Data   RecordData   `json:"data"`
}

type RecordID struct {
	JID    string `json:"jid"`
	FQName string `json:"fq_name"`
	jobid.Name
	Combination map[string]string `json:"combination,omitempty"`
}

type RecordResult struct {
	RC       int       `json:"rc"`
	State    Status    `json:"state"`
	Phase    Phase     `json:"phase"`
	Time     float64   `json:"time"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason,omitempty"`
	Output   string    `json:"output"`
}

type RecordData struct {
	Metrics   map[string][]string `json:"metrics,omitempty"`
	Tags      []string            `json:"tags,omitempty"`
	Groups    []string            `json:"group,omitempty"`
	Artifacts map[string]string   `json:"artifacts,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// Record snapshots the job for publication.
func (j *Job) Record() Record {
	return Record{
		ID: RecordID{
			JID:         j.Name.JID(),
			FQName:      j.FQName(),
			Name:        j.Name,
			Combination: j.Combination,
		},
		Exec: j.Exec.Command,
		Result: RecordResult{
			RC:       j.Result.ExitCode,
			State:    j.Status,
			Phase:    j.Phase,
			Time:     j.Result.Elapsed.Seconds(),
			Start:    j.Result.Start,
			End:      j.Result.End,
			Attempts: j.Attempts,
			Reason:   j.Result.Reason,
			Output:   j.Result.Output,
		},
		Data: RecordData{
			Metrics:   j.Result.Metrics,
			Tags:      j.Tags,
			Groups:    j.Groups,
			Artifacts: j.Result.Artifacts,
			Warnings:  j.Warnings,
		},
	}
}
