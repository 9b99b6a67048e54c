package plugin

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vk/benchgrid/internal/job"
)

// NotLongerThanPreviousRuns flags a job slower than its best recent run.
const NotLongerThanPreviousRuns = "not_longer_than_previous_runs"

// notLongerThanPreviousRuns compares the elapsed time with the fastest of the
// last history_depth successful runs (-1 for all). Being slower by more than
// tolerance percent yields TIMEOUT_SOFT. Without history the rule is skipped.
func notLongerThanPreviousRuns(ctx context.Context, args map[string]any, in AnalysisInput) (Verdict, error) {
	if in.History == nil {
		return Verdict{Skipped: true, Reason: "no history store"}, nil
	}
	depth, err := numberArg(args, "history_depth", 1)
	if err != nil {
		return Verdict{}, err
	}
	tolerance, err := numberArg(args, "tolerance", 2)
	if err != nil {
		return Verdict{}, err
	}
	limit := int(depth)
	if depth < 0 {
		limit = math.MaxInt
	}

	runs, err := in.History.Previous(ctx, in.Name, 0)
	if err != nil {
		return Verdict{}, fmt.Errorf("read history of %q: %w", in.Name, err)
	}
	var best time.Duration
	count := 0
	for _, r := range runs {
		if count >= limit {
			break
		}
		if r.Status != job.Success {
			continue
		}
		if count == 0 || r.Elapsed < best {
			best = r.Elapsed
		}
		count++
	}
	if count == 0 {
		return Verdict{Skipped: true, Reason: "no successful previous run"}, nil
	}

	ceiling := time.Duration(float64(best) * (1 + tolerance/100))
	if in.Elapsed >= ceiling {
		return Verdict{
			Status: job.TimeoutSoft,
			Reason: fmt.Sprintf("took %s, previous best %s (+%g%% allowed)", in.Elapsed, best, tolerance),
		}, nil
	}
	return Verdict{Status: job.Success}, nil
}

func numberArg(args map[string]any, key string, def float64) (float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float64:
		return x, nil
	}
	return 0, fmt.Errorf("argument %q must be a number, got %v", key, v)
}
