package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const consumerTag = "researchmate-runner"

// Dial connects to the broker at url.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp broker: %w", err)
	}
	return conn, nil
}

func declareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

// AMQPPublisher dispatches job ids as persistent messages on a durable queue.
type AMQPPublisher struct {
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
}

func NewAMQPPublisher(conn *amqp.Connection, queue string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := declareQueue(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	return &AMQPPublisher{ch: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Dispatch(ctx context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "text/plain",
			MessageId:    id.String(),
			Body:         []byte(id.String()),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish job %s: %w", id, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

// AMQPConsumer runs jobs delivered on the queue, acknowledging each after its handler returns.
type AMQPConsumer struct {
	ch      *amqp.Channel
	queue   string
	workers int
	handler Handler
	wg      sync.WaitGroup
}

// NewAMQPConsumer opens a channel whose prefetch equals workers, so the broker
// never hands this process more jobs than it can run at once.
func NewAMQPConsumer(conn *amqp.Connection, queue string, workers int, handler Handler) (*AMQPConsumer, error) {
	if workers < 1 {
		workers = 1
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	if err := declareQueue(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	return &AMQPConsumer{ch: ch, queue: queue, workers: workers, handler: handler}, nil
}

// Start registers the consumer and launches the workers.
func (c *AMQPConsumer) Start(ctx context.Context) error {
	msgs, err := c.ch.Consume(
		c.queue,
		consumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	runCtx := context.WithoutCancel(ctx)
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for msg := range msgs {
				c.handle(runCtx, msg)
			}
		}()
	}

	slog.Info("amqp consumer started", "queue", c.queue, "workers", c.workers)
	return nil
}

func (c *AMQPConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	id, err := uuid.Parse(string(msg.Body))
	if err != nil {
		slog.Error("dropping malformed job message", "queue", c.queue, "error", err)
		_ = msg.Nack(false, false)
		return
	}

	c.handler(ctx, id)

	if err := msg.Ack(false); err != nil {
		slog.Error("ack job message", "job_id", id, "error", err)
	}
}

// Stop cancels the consumer and waits for in-flight handlers until ctx is done.
func (c *AMQPConsumer) Stop(ctx context.Context) error {
	if err := c.ch.Cancel(consumerTag, false); err != nil {
		slog.Warn("cancel amqp consumer", "error", err)
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return c.ch.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Dispatcher = (*AMQPPublisher)(nil)
