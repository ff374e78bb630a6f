package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"banana-studio-backend/internal/logging"
	"banana-studio-backend/internal/queue"
)

// LocalDispatcher executes tasks on goroutines of this process. Work outlives
// the request that started it and stops when the base context ends.
type LocalDispatcher struct {
	base    context.Context
	execute func(ctx context.Context, task Task) error
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewLocalDispatcher(base context.Context, execute func(ctx context.Context, task Task) error, logger *slog.Logger) *LocalDispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LocalDispatcher{
		base:    base,
		execute: execute,
		logger:  logging.WithComponent(logger, "dispatch"),
	}
}

func (d *LocalDispatcher) Dispatch(_ context.Context, task Task) error {
	if err := d.base.Err(); err != nil {
		return fmt.Errorf("dispatcher stopped: %w", err)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.execute(d.base, task); err != nil {
			d.logger.Error("task execution failed", "job_id", task.JobID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched task has returned.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// MessagePublisher sends an encoded task to a broker.
type MessagePublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// QueueDispatcher sends tasks to RabbitMQ for the consumer pool.
type QueueDispatcher struct {
	publisher MessagePublisher
}

func NewQueueDispatcher(publisher MessagePublisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	return d.publisher.Publish(ctx, body)
}

// MessageHandler decodes queued tasks and executes them.
func MessageHandler(execute func(ctx context.Context, task Task) error) queue.Handler {
	return func(ctx context.Context, body []byte) error {
		var task Task
		if err := json.Unmarshal(body, &task); err != nil {
			return fmt.Errorf("failed to decode task: %w", err)
		}
		return execute(ctx, task)
	}
}
