package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Job asks a worker to import one file of a stored archive.
type Job struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenantId"`
	UploadID   string            `json:"uploadId"`
	File       string            `json:"file"`
	Schema     string            `json:"schema"`
	Mapping    map[string]string `json:"mapping"`
	Rows       int               `json:"rows"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}

// Publisher hands jobs to workers.
type Publisher interface {
	Publish(ctx context.Context, job Job) error
}

// JobHandler processes one job. Errors marked permanent are dropped,
// others are retried.
type JobHandler func(ctx context.Context, job Job) error

// Queue is a durable RabbitMQ queue of import jobs.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	name    string
	logger  *slog.Logger

	MaxRetries int
}

// DialQueue connects to RabbitMQ and declares the queue. prefetch bounds
// the unacknowledged jobs a consumer holds.
func DialQueue(url, name string, prefetch int, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}

	_, err = ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &Queue{
		conn:       conn,
		channel:    ch,
		name:       name,
		logger:     logger,
		MaxRetries: defaultMaxRetries,
	}, nil
}

func (q *Queue) Publish(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.publish(ctx, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now(),
	})
}

func (q *Queue) publish(ctx context.Context, msg amqp.Publishing) error {
	return q.channel.PublishWithContext(ctx,
		"",     // default exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		msg,
	)
}

// Consume delivers jobs to handle until ctx is done or the channel closes.
func (q *Queue) Consume(ctx context.Context, handle JobHandler) error {
	msgs, err := q.channel.Consume(
		q.name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	h := &deliveryHandler{
		handle:     handle,
		republish:  q.publish,
		maxRetries: q.MaxRetries,
		delay:      linearBackoff,
		logger:     q.logger,
	}

	q.logger.Info("consuming import jobs", "queue", q.name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("queue %s: delivery channel closed", q.name)
			}
			h.process(ctx, d)
		}
	}
}

func (q *Queue) Close() error {
	if q.channel != nil {
		if err := q.channel.Close(); err != nil {
			return err
		}
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
