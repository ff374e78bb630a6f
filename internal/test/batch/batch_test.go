package batch_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banana-studio-backend/internal/batch"
	"banana-studio-backend/internal/jobs"
	"banana-studio-backend/internal/logging"
)

// promptRunner fails or panics for requests whose prompt names it.
type promptRunner struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (r *promptRunner) Run(_ context.Context, req jobs.Request) (*jobs.Job, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(r.delay)

	switch {
	case strings.Contains(req.Prompt, "panic"):
		panic("decoder exploded")
	case strings.Contains(req.Prompt, "fail"):
		job := &jobs.Job{Kind: req.Kind, Status: jobs.StatusFailed, Error: "content policy violation"}
		return job, &jobs.RemoteError{Kind: req.Kind, Message: "content policy violation"}
	}
	return &jobs.Job{Kind: req.Kind, Status: jobs.StatusCompleted, Progress: 100}, nil
}

func requests(prompts ...string) []jobs.Request {
	out := make([]jobs.Request, len(prompts))
	for i, p := range prompts {
		out[i] = jobs.Request{Kind: jobs.KindVideo, Prompt: p}
	}
	return out
}

func TestRun_AttributesFailuresByIndex(t *testing.T) {
	runner := batch.NewRunner(&promptRunner{}, 0, logging.Discard())

	var mu sync.Mutex
	var settled []batch.Settled
	run := runner.Run(context.Background(), requests("a", "b", "fail", "d"), func(s batch.Settled) {
		mu.Lock()
		defer mu.Unlock()
		settled = append(settled, s)
	})

	assert.Equal(t, 4, run.Total)
	assert.Equal(t, 3, run.Completed)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, 2, run.Failures[0].Index)
	assert.Equal(t, "Image 3: content policy violation", run.Failures[0].Label())
	assert.Len(t, run.Results, 3)

	require.Len(t, settled, 4)
	last := settled[len(settled)-1]
	assert.Equal(t, 4, last.Completed+last.Failed)
	for i, s := range settled {
		assert.Equal(t, i+1, s.Completed+s.Failed)
		assert.Equal(t, 4, s.Total)
	}
}

func TestRun_RecoversPanickingItem(t *testing.T) {
	runner := batch.NewRunner(&promptRunner{}, 0, nil)

	run := runner.Run(context.Background(), requests("ok", "panic"), nil)

	assert.Equal(t, 1, run.Completed)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, 1, run.Failures[0].Index)
	assert.Contains(t, run.Failures[0].Error, "decoder exploded")
}

func TestRun_RespectsLimit(t *testing.T) {
	jr := &promptRunner{delay: 20 * time.Millisecond}
	runner := batch.NewRunner(jr, 2, logging.Discard())

	run := runner.Run(context.Background(), requests("a", "b", "c", "d", "e"), nil)

	assert.Equal(t, 5, run.Completed)
	assert.LessOrEqual(t, jr.peak.Load(), int32(2))
}

func TestRun_AllItemsFail(t *testing.T) {
	runner := batch.NewRunner(&promptRunner{}, 0, logging.Discard())

	run := runner.Run(context.Background(), requests("fail one", "fail two"), nil)

	assert.Equal(t, 0, run.Completed)
	assert.Equal(t, 2, run.Failed)
	assert.Equal(t, 0, run.Failures[0].Index)
	assert.Equal(t, 1, run.Failures[1].Index)
	assert.Equal(t, "Image 2: content policy violation", run.Failures[1].Label())
}

func TestRun_Empty(t *testing.T) {
	runner := batch.NewRunner(&promptRunner{}, 0, logging.Discard())

	run := runner.Run(context.Background(), nil, nil)

	assert.Equal(t, 0, run.Total)
	assert.Empty(t, run.Results)
	assert.NotNil(t, run.Failures)
}
