package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"banana-studio-backend/internal/jobs"
	"banana-studio-backend/internal/logging"
	"banana-studio-backend/internal/metrics"
	"banana-studio-backend/internal/tracing"
)

// JobRunner runs a single generation to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, req jobs.Request) (*jobs.Job, error)
}

type ItemResult struct {
	Index int       `json:"index"`
	Job   *jobs.Job `json:"job"`
}

type ItemFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Label renders the failure the way it is shown to users, numbering from 1.
func (f ItemFailure) Label() string {
	return fmt.Sprintf("Image %d: %s", f.Index+1, f.Error)
}

// Run is the aggregate outcome of one batch.
type Run struct {
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Results   []ItemResult  `json:"results"`
	Failures  []ItemFailure `json:"failures"`
}

// Settled describes one item reaching a terminal state, with the running
// totals at that moment.
type Settled struct {
	Index     int
	Job       *jobs.Job
	Err       error
	Completed int
	Failed    int
	Total     int
}

// SettleFunc is invoked once per item. Calls are serialized.
type SettleFunc func(Settled)

type Runner struct {
	jobs   JobRunner
	limit  int
	logger *slog.Logger
}

// NewRunner creates a batch runner. limit <= 0 submits every item at once.
func NewRunner(jr JobRunner, limit int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		jobs:   jr,
		limit:  limit,
		logger: logger,
	}
}

// Run submits every request concurrently and waits for all of them to
// settle. It never fails as a whole; per-item failures are reported in the
// returned Run, attributed by index.
func (r *Runner) Run(ctx context.Context, reqs []jobs.Request, onSettle SettleFunc) *Run {
	ctx, span := tracing.Tracer("batch").Start(ctx, "batch.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.total", len(reqs)),
		attribute.Int("batch.limit", r.limit),
	)

	result := &Run{
		Total:    len(reqs),
		Results:  make([]ItemResult, 0, len(reqs)),
		Failures: make([]ItemFailure, 0),
	}

	if r.limit <= 0 {
		r.logger.Info("batch fan-out is uncapped", "items", len(reqs))
	}

	var g errgroup.Group
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}

	var mu sync.Mutex
	for i, req := range reqs {
		g.Go(func() error {
			metrics.BatchInFlight.Inc()
			job, err := r.runItem(ctx, req)
			metrics.BatchInFlight.Dec()

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Failed++
				result.Failures = append(result.Failures, ItemFailure{Index: i, Error: err.Error()})
				metrics.BatchItemsTotal.WithLabelValues(string(jobs.StatusFailed)).Inc()
				r.logger.Warn("batch item failed", "index", i, "kind", req.Kind, "error", err)
			} else {
				result.Completed++
				result.Results = append(result.Results, ItemResult{Index: i, Job: job})
				metrics.BatchItemsTotal.WithLabelValues(string(jobs.StatusCompleted)).Inc()
			}

			if onSettle != nil {
				onSettle(Settled{
					Index:     i,
					Job:       job,
					Err:       err,
					Completed: result.Completed,
					Failed:    result.Failed,
					Total:     result.Total,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Failures, func(a, b int) bool {
		return result.Failures[a].Index < result.Failures[b].Index
	})

	r.logger.Info("batch settled",
		"total", result.Total,
		"completed", result.Completed,
		"failed", result.Failed,
	)
	return result
}

// runItem converts a panicking item into an ordinary failure so the batch
// still settles.
func (r *Runner) runItem(ctx context.Context, req jobs.Request) (job *jobs.Job, err error) {
	defer func() {
		if p := recover(); p != nil {
			job = nil
			err = fmt.Errorf("item panicked: %v", p)
		}
	}()
	return r.jobs.Run(ctx, req)
}
