package core

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/marwinsteiner/trade-accounting/constants"
	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

// DocumentFailure names a document that failed and why.
type DocumentFailure struct {
	Path string
	Err  error
}

// BatchSummary totals one batch run.
type BatchSummary struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Legs      int
	Failures  []DocumentFailure
}

// RunBatch processes docs with at most concurrency documents in flight.
// A failing document is counted and never stops the rest; every document is
// attempted unless ctx is cancelled first.
func RunBatch(ctx context.Context, proc *Processor, docs []entity.Document, concurrency int) BatchSummary {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu  sync.Mutex
		sum BatchSummary
	)
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			var (
				out Outcome
				err error
			)
			if cerr := ctx.Err(); cerr != nil {
				err = cerr
			} else {
				out, err = proc.ProcessFile(ctx, doc)
			}

			mu.Lock()
			defer mu.Unlock()
			sum.Processed++
			switch {
			case err != nil:
				sum.Failed++
				sum.Failures = append(sum.Failures, DocumentFailure{Path: doc.SourcePath, Err: err})
			case out.Status == constants.DocumentStatusSkipped:
				sum.Skipped++
			default:
				sum.Succeeded++
				sum.Legs += len(out.Trade.Legs)
			}
			return nil
		})
	}
	_ = g.Wait()
	slices.SortFunc(sum.Failures, func(a, b DocumentFailure) int { return cmp.Compare(a.Path, b.Path) })

	proc.logger.Info("processor.batch.done",
		"run_id", proc.runID,
		"processed", sum.Processed,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"legs", sum.Legs,
	)
	return sum
}
