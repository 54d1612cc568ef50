// Package fanout implements the generic parallel execution engine (C11):
// run one operation per item concurrently, collect every outcome once all
// have settled, and apply one of two failure policies. The bounded-
// semaphore-plus-mutex-collector shape is the same one the teacher's deep
// scanner uses to run discovery commands in parallel with a channel-based
// semaphore and a shared mutex-guarded result map, generalized here from a
// fixed per-resource command list to any slice of items and any per-item
// operation.
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/rcourtman/dockfleet/internal/logging"
	"github.com/rcourtman/dockfleet/internal/metrics"
)

// Mode selects how a failed item is represented in the collected results.
type Mode int

const (
	// Partial drops failed items from the output entirely; Run logs each
	// dropped failure at warn level. Used by list-style handlers (§7:
	// "per-host failures during fan-out in partial mode: logged, omitted").
	Partial Mode = iota
	// Aggregate keeps every outcome, success or failure, in the output in
	// input order. Used by handlers like docker.prune where each target's
	// result — including its error — is part of the response.
	Aggregate
)

// Outcome pairs one item's result with its error, if any.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Run executes op(ctx, item) for every item concurrently, with at most
// maxConcurrency in flight at once (0 means unbounded), and returns the
// outcomes once every item has settled. In Partial mode, failed items are
// logged and omitted from the returned slice; in Aggregate mode every item appears,
// successful or not.
func Run[T, R any](ctx context.Context, items []T, maxConcurrency int, op func(context.Context, T) (R, error), mode Mode) []Outcome[R] {
	if len(items) == 0 {
		return nil
	}

	var sem chan struct{}
	if maxConcurrency > 0 {
		sem = make(chan struct{}, maxConcurrency)
	}

	results := make([]Outcome[R], len(items))
	present := make([]bool, len(items))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					mu.Lock()
					results[i] = Outcome[R]{Err: ctx.Err()}
					present[i] = true
					mu.Unlock()
					return
				}
			}

			value, err := op(ctx, item)

			mu.Lock()
			results[i] = Outcome[R]{Value: value, Err: err}
			present[i] = true
			mu.Unlock()
		}(i, item)
	}

	wg.Wait()

	if mode == Aggregate {
		return results
	}

	out := make([]Outcome[R], 0, len(results))
	for i, r := range results {
		if present[i] && r.Err == nil {
			out = append(out, r)
		} else if present[i] {
			logging.For("fanout").Warn().Err(r.Err).Int("item", i).Msg("fan-out item failed, omitted from partial result")
		}
	}
	return out
}

// RunNamed is Run with its wall-clock duration recorded against operation
// in the fan-out latency histogram — the label a handler would otherwise
// have no way to attach from inside the generic engine.
func RunNamed[T, R any](ctx context.Context, operation string, items []T, maxConcurrency int, op func(context.Context, T) (R, error), mode Mode) []Outcome[R] {
	start := time.Now()
	defer func() { metrics.ObserveFanout(operation, metrics.Since(start)) }()
	return Run(ctx, items, maxConcurrency, op, mode)
}

// Values extracts just the successful values from a Partial-mode result
// set (Aggregate-mode callers should inspect Outcome.Err themselves since
// they need the failures too).
func Values[R any](outcomes []Outcome[R]) []R {
	out := make([]R, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			out = append(out, o.Value)
		}
	}
	return out
}
