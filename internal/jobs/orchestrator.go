package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"banana-studio-backend/internal/logging"
	"banana-studio-backend/internal/metrics"
	"banana-studio-backend/internal/tracing"
)

// Policy bounds the wait on a queued job.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

var (
	UpscalePolicy = Policy{Interval: 5 * time.Second, MaxAttempts: 30}
	VideoPolicy   = Policy{Interval: 5 * time.Second, MaxAttempts: 60}
)

// Budget is the longest a job may stay queued before it times out.
func (p Policy) Budget() time.Duration {
	return time.Duration(p.MaxAttempts) * p.Interval
}

// Progress estimates completion after attempts polls. It caps at 90; only a
// confirmed completion moves a job to 100.
func Progress(attempts, maxAttempts int) int {
	if maxAttempts <= 0 || attempts <= 0 {
		return 0
	}
	p := attempts * 90 / maxAttempts
	if p > 90 {
		return 90
	}
	return p
}

// Observer receives a snapshot of the job after every transition.
type Observer func(Job)

type Orchestrator struct {
	provider Provider
	policy   Policy
	sleeper  Sleeper
	observer Observer
	logger   *slog.Logger
}

type Option func(*Orchestrator)

func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleeper = s }
}

func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func NewOrchestrator(provider Provider, policy Policy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		policy:   policy,
		sleeper:  TimerSleeper{},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy returns the poll policy the orchestrator enforces.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Run executes req under a fresh job id.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Job, error) {
	return o.RunJob(ctx, uuid.NewString(), req, nil)
}

// RunJob drives one request to a terminal state. The returned job is always
// non-nil; err is non-nil exactly when the job failed. observer, when set,
// is called in addition to the orchestrator-wide observer.
func (o *Orchestrator) RunJob(ctx context.Context, id string, req Request, observer Observer) (*Job, error) {
	ctx, span := tracing.Tracer("jobs").Start(ctx, "jobs.Run",
		trace.WithAttributes(
			attribute.String("job.id", id),
			attribute.String("job.kind", string(req.Kind)),
		),
	)
	defer span.End()

	r := &run{
		o:        o,
		job:      &Job{ID: id, Kind: req.Kind, Status: StatusPending},
		observer: observer,
		span:     span,
		started:  time.Now(),
		logger:   logging.WithJobID(o.logger, id).With("kind", req.Kind),
	}
	r.notify()

	if err := req.Validate(); err != nil {
		return r.fail(err)
	}

	sub, err := o.provider.Submit(ctx, req)
	if err != nil {
		return r.fail(fmt.Errorf("failed to submit %s job: %w", req.Kind, err))
	}

	switch s := sub.(type) {
	case Immediate:
		return r.complete(s.Output)
	case Queued:
		r.job.RequestID = s.Handle.RequestID
		r.job.Status = StatusInProgress
		r.notify()
		r.logger.Info("job queued", "request_id", s.Handle.RequestID)
		return r.poll(ctx, s.Handle)
	default:
		return r.fail(fmt.Errorf("provider returned unsupported submission %T", sub))
	}
}

// run carries the state of a single RunJob call.
type run struct {
	o        *Orchestrator
	job      *Job
	observer Observer
	span     trace.Span
	started  time.Time
	logger   *slog.Logger
}

func (r *run) poll(ctx context.Context, handle Handle) (*Job, error) {
	policy := r.o.policy
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res, err := r.o.provider.Poll(ctx, handle)
		r.job.Attempts = attempt
		metrics.PollAttemptsTotal.WithLabelValues(string(r.job.Kind)).Inc()
		if err != nil {
			return r.fail(fmt.Errorf("failed to poll %s job: %w", r.job.Kind, err))
		}

		switch res.State {
		case RemoteCompleted:
			var out Output
			if res.Output != nil {
				out = *res.Output
			}
			return r.complete(out)
		case RemoteFailed:
			return r.fail(&RemoteError{Kind: r.job.Kind, Message: res.Error})
		}

		if p := Progress(attempt, policy.MaxAttempts); p > r.job.Progress {
			r.job.Progress = p
		}
		r.notify()

		if attempt == policy.MaxAttempts {
			break
		}
		if err := r.o.sleeper.Sleep(ctx, policy.Interval); err != nil {
			return r.fail(fmt.Errorf("stopped waiting for %s job: %w", r.job.Kind, err))
		}
	}

	return r.fail(fmt.Errorf("%w after %d polls (%s)", ErrTimedOut, policy.MaxAttempts, policy.Budget()))
}

func (r *run) complete(out Output) (*Job, error) {
	r.job.Status = StatusCompleted
	r.job.Progress = 100
	r.job.Result = &out
	r.notify()

	metrics.GenerationJobsTotal.WithLabelValues(string(r.job.Kind), string(StatusCompleted)).Inc()
	metrics.GenerationJobDuration.WithLabelValues(string(r.job.Kind)).Observe(time.Since(r.started).Seconds())
	r.logger.Info("job completed", "attempts", r.job.Attempts)
	return r.job, nil
}

func (r *run) fail(err error) (*Job, error) {
	r.job.Status = StatusFailed
	r.job.Error = err.Error()
	r.notify()

	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
	metrics.GenerationJobsTotal.WithLabelValues(string(r.job.Kind), string(StatusFailed)).Inc()
	metrics.GenerationJobDuration.WithLabelValues(string(r.job.Kind)).Observe(time.Since(r.started).Seconds())
	r.logger.Warn("job failed", "attempts", r.job.Attempts, "error", err)
	return r.job, err
}

func (r *run) notify() {
	snapshot := *r.job
	if r.o.observer != nil {
		r.o.observer(snapshot)
	}
	if r.observer != nil {
		r.observer(snapshot)
	}
}
