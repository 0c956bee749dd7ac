package wage

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// BATCH RUNNER - Many records, bounded concurrency, independent outcomes
// =============================================================================

// Outcome is the per-record result of a batch: exactly one of Result or Err
// is set.
type Outcome struct {
	Input  CalculationInput
	Result *CalculationResult
	Err    error
}

// OK reports whether the record calculated successfully.
func (o Outcome) OK() bool { return o.Err == nil }

// BatchKey identifies a record in a batch result: work date and worker.
func BatchKey(in CalculationInput) string {
	return DateOf(in.WorkDate).Format(DateLayout) + "_" + in.WorkerID
}

// CalculateBatch calculates every input and returns one outcome per key.
//
// Inputs run in consecutive groups of GroupSize. Every record in a group
// runs concurrently and the next group starts only once all of them have
// settled, so at most GroupSize rule lookups are in flight at once.
// A failing record never affects its siblings. The batch as a whole never
// fails.
//
// Two inputs with the same key collide; the one later in the input slice
// wins and the collision is logged.
func (c *Calculator) CalculateBatch(ctx context.Context, inputs []CalculationInput) map[string]Outcome {
	outcomes := make([]Outcome, len(inputs))

	for start := 0; start < len(inputs); start += c.groupSize {
		end := min(start+c.groupSize, len(inputs))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				result, err := c.Calculate(ctx, inputs[i])
				outcomes[i] = Outcome{Input: inputs[i], Result: result, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}

	results := make(map[string]Outcome, len(inputs))
	failed := 0
	for _, o := range outcomes {
		key := BatchKey(o.Input)
		if _, dup := results[key]; dup {
			c.logger.WarnContext(ctx, "duplicate batch key, earlier record replaced",
				slog.String("key", key))
		}
		if o.Err != nil {
			failed++
			c.logger.WarnContext(ctx, "wage calculation failed",
				slog.String("key", key),
				slog.String("error", o.Err.Error()))
		}
		results[key] = o
	}

	c.logger.InfoContext(ctx, "wage batch complete",
		slog.Int("records", len(inputs)),
		slog.Int("keys", len(results)),
		slog.Int("failed", failed))

	return results
}

// =============================================================================
// BATCH SUMMARY
// =============================================================================

// FailedRecord is one failure in a batch summary.
type FailedRecord struct {
	Key      string
	WorkerID string
	Reason   string
}

// BatchSummary counts the outcomes of a batch.
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    []FailedRecord // sorted by key
}

// Summarize counts outcomes and lists failures.
func Summarize(outcomes map[string]Outcome) BatchSummary {
	s := BatchSummary{Total: len(outcomes)}
	for key, o := range outcomes {
		if o.OK() {
			s.Succeeded++
			continue
		}
		s.Failed++
		s.Errors = append(s.Errors, FailedRecord{
			Key:      key,
			WorkerID: o.Input.WorkerID,
			Reason:   o.Err.Error(),
		})
	}
	sort.Slice(s.Errors, func(i, j int) bool { return s.Errors[i].Key < s.Errors[j].Key })
	return s
}

// SortedKeys returns the keys of a batch result in ascending order.
func SortedKeys(outcomes map[string]Outcome) []string {
	keys := make([]string, 0, len(outcomes))
	for k := range outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
