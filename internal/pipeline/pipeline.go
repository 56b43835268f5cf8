// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline composes extraction and retrieval into one orchestrated
// run and owns the run summary.
// Implements: prd004-orchestration (R1-R4); docs/ARCHITECTURE § Pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/patent-harvester/internal/ident"
	"github.com/pdiddy/patent-harvester/internal/ledger"
	"github.com/pdiddy/patent-harvester/internal/store"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// ErrNoResults is the total-failure case where extraction found nothing.
var ErrNoResults = errors.New("no patents found for topic")

// ErrAllFailed is the total-failure case where no retrieval saved an artifact.
var ErrAllFailed = errors.New("all retrievals failed")

// Extractor yields an ordered identifier set for a topic.
type Extractor interface {
	Extract(ctx context.Context, topic string, maxCount int) (*ident.Set, error)
}

// Retriever fetches one document. A non-nil error is resource-level and
// short-circuits the remainder of the run.
type Retriever interface {
	Retrieve(ctx context.Context, id ident.ID) (types.Outcome, error)
}

// Runner orchestrates one harvest invocation.
type Runner struct {
	Extractor Extractor

	// Retrievers holds one retriever per worker. A single entry is the
	// sequential baseline; the upstream rate limits by client identity, so
	// more workers require the shared Rate gate.
	Retrievers []Retriever

	Store  *store.Store
	Ledger *ledger.Ledger
	Logger *zap.Logger

	// Delay is the pause between consecutive retrievals in sequential mode.
	Delay time.Duration

	// Rate is the shared token-bucket gate applied across all workers.
	Rate *rate.Limiter
}

// Run extracts identifiers for the topic and retrieves each one, in
// result-set order. The returned summary covers every identifier even when a
// resource failure or cancellation cuts retrieval short. The error reflects
// the exit contract: nil on success or partial failure, ErrNoResults /
// ErrAllFailed on total failure.
func (r *Runner) Run(ctx context.Context, topic string, maxCount int) (*types.RunSummary, error) {
	if len(r.Retrievers) == 0 {
		return nil, fmt.Errorf("no retrievers configured")
	}

	sum := &types.RunSummary{
		Topic:     topic,
		Requested: maxCount,
		Started:   time.Now(),
	}

	set, err := r.Extractor.Extract(ctx, topic, maxCount)
	if err != nil {
		return nil, fmt.Errorf("extracting identifiers: %w", err)
	}
	ids := set.IDs()
	sum.Found = len(ids)

	if len(ids) == 0 {
		r.finalize(ctx, sum)
		return sum, ErrNoResults
	}

	outcomes := make([]types.Outcome, len(ids))
	if len(r.Retrievers) == 1 {
		r.runSequential(ctx, ids, outcomes)
	} else {
		r.runConcurrent(ctx, ids, outcomes)
	}

	// Outcomes are appended in result-set order regardless of internal
	// concurrency, keeping output reproducible for a fixed input.
	for _, o := range outcomes {
		sum.Append(o)
	}

	r.finalize(ctx, sum)

	if sum.AllFailed() {
		return sum, ErrAllFailed
	}
	return sum, nil
}

func (r *Runner) runSequential(ctx context.Context, ids []ident.ID, outcomes []types.Outcome) {
	ret := r.Retrievers[0]
	abort := ""
	for i, id := range ids {
		if abort != "" {
			outcomes[i] = failedOutcome(id, abort)
			continue
		}
		// Cancellation takes effect at the identifier boundary.
		if err := ctx.Err(); err != nil {
			abort = "run cancelled"
			outcomes[i] = failedOutcome(id, abort)
			continue
		}
		if i > 0 && r.Delay > 0 {
			select {
			case <-ctx.Done():
				abort = "run cancelled"
				outcomes[i] = failedOutcome(id, abort)
				continue
			case <-time.After(r.Delay):
			}
		}
		if r.Rate != nil {
			if err := r.Rate.Wait(ctx); err != nil {
				abort = "run cancelled"
				outcomes[i] = failedOutcome(id, abort)
				continue
			}
		}

		out, err := ret.Retrieve(ctx, id)
		outcomes[i] = out
		if err != nil {
			// Resource failure: the remaining identifiers are reported as
			// failed rather than propagating a fault mid-run.
			abort = fmt.Sprintf("aborted after resource failure: %v", err)
			r.Logger.Error("retrieval resource failure, short-circuiting run",
				zap.String("id", id.String()), zap.Error(err))
		}
	}
}

func (r *Runner) runConcurrent(ctx context.Context, ids []ident.ID, outcomes []types.Outcome) {
	var mu sync.Mutex
	abort := ""
	setAbort := func(reason string) {
		mu.Lock()
		if abort == "" {
			abort = reason
		}
		mu.Unlock()
	}
	abortReason := func() string {
		mu.Lock()
		defer mu.Unlock()
		return abort
	}

	workers := len(r.Retrievers)
	if workers > len(ids) {
		workers = len(ids)
	}

	idxCh := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		ret := r.Retrievers[w]
		g.Go(func() error {
			for i := range idxCh {
				if reason := abortReason(); reason != "" {
					outcomes[i] = failedOutcome(ids[i], reason)
					continue
				}
				if r.Rate != nil {
					if err := r.Rate.Wait(gctx); err != nil {
						setAbort("run cancelled")
						outcomes[i] = failedOutcome(ids[i], "run cancelled")
						continue
					}
				}
				out, err := ret.Retrieve(gctx, ids[i])
				outcomes[i] = out
				if err != nil {
					setAbort(fmt.Sprintf("aborted after resource failure: %v", err))
					r.Logger.Error("retrieval resource failure, short-circuiting run",
						zap.String("id", ids[i].String()), zap.Error(err))
				}
			}
			return nil
		})
	}

	for i := range ids {
		idxCh <- i
	}
	close(idxCh)
	_ = g.Wait() // workers report through outcomes, never through errors
}

// finalize stamps the summary, persists the status record when debug capture
// is on, and appends the run to the ledger.
func (r *Runner) finalize(ctx context.Context, sum *types.RunSummary) {
	sum.Elapsed = time.Since(sum.Started)

	counts := sum.CountByStatus()
	r.Logger.Info("run complete",
		zap.String("topic", sum.Topic),
		zap.Int("found", sum.Found),
		zap.Int("pdf_saved", counts[types.StatusPDFSaved]),
		zap.Int("html_saved", counts[types.StatusHTMLSaved]),
		zap.Int("not_found", counts[types.StatusNotFound]),
		zap.Int("failed", counts[types.StatusFailed]),
		zap.Duration("elapsed", sum.Elapsed))

	if path, err := r.Store.WriteSummary(sum); err != nil {
		r.Logger.Warn("writing run summary failed", zap.Error(err))
	} else if path != "" {
		r.Logger.Info("wrote run summary", zap.String("path", path))
	}

	if r.Ledger != nil {
		// Record even cancelled runs; use a fresh context so a cancelled
		// run still lands in history.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := r.Ledger.RecordRun(rctx, sum); err != nil {
			r.Logger.Warn("recording run in ledger failed", zap.Error(err))
		}
	}
}

func failedOutcome(id ident.ID, reason string) types.Outcome {
	return types.Outcome{
		Identifier: id.String(),
		Status:     types.StatusFailed,
		Error:      reason,
	}
}
