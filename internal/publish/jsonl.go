package publish

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vk/benchgrid/internal/job"
)

// JSONL writes one result record per line.
type JSONL struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(w)}
}

func (p *JSONL) Publish(_ context.Context, j *job.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Wrapf(p.enc.Encode(j.Record()), "failed to write result of %s", j.FQName())
}
