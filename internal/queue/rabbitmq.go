package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"banana-studio-backend/internal/logging"
)

// Handler processes one message body. An error drops the message; generation
// work is never redelivered.
type Handler func(ctx context.Context, body []byte) error

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	return conn, nil
}

func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}

type Publisher struct {
	mu      sync.Mutex
	channel *amqp.Channel
	queue   string
}

func NewPublisher(conn *amqp.Connection, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publisher channel: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	return &Publisher{channel: ch, queue: queue}, nil
}

// Publish sends body to the work queue as a persistent message.
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx,
		"",
		p.queue,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.queue, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

type Consumer struct {
	channel     *amqp.Channel
	queue       string
	workerCount int
	handler     Handler
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func NewConsumer(conn *amqp.Connection, queue string, workerCount int, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if workerCount <= 0 {
		workerCount = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.Qos(workerCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	return &Consumer{
		channel:     ch,
		queue:       queue,
		workerCount: workerCount,
		handler:     handler,
		logger:      logging.WithComponent(logger, "queue"),
	}, nil
}

// Start runs the worker pool until ctx ends, then waits for in-flight
// messages.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx,
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}

	c.logger.Info("starting worker pool", "workers", c.workerCount, "queue", c.queue)
	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, deliveries)
	}

	<-ctx.Done()
	c.wg.Wait()
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.With("worker_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			if err := c.handler(ctx, d.Body); err != nil {
				log.Warn("message processing failed, dropping", "error", err, "delivery_tag", d.DeliveryTag)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) Close() error {
	return c.channel.Close()
}
