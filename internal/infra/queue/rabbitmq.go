package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-moderation-bot/internal/domain"
)

// RabbitReviewQueue реализует очередь задач через AMQP.
type RabbitReviewQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

var _ domain.ReviewQueue = (*RabbitReviewQueue)(nil)

// NewRabbitReviewQueue подключается к брокеру и объявляет очередь.
func NewRabbitReviewQueue(amqpURL, queue string) (*RabbitReviewQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	args := amqp.Table{"x-max-priority": int32(10)}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitReviewQueue{conn: conn, channel: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitReviewQueue) Enqueue(ctx context.Context, job domain.ReviewJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	priority := job.Priority
	if priority < 0 {
		priority = 0
	}
	if priority > 10 {
		priority = 10
	}
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     uint8(priority),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RabbitReviewQueue) Pop(ctx context.Context) (domain.ReviewJob, error) {
	deliveries, err := q.channel.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return domain.ReviewJob{}, fmt.Errorf("consume: %w", err)
	}
	defer func() { _ = q.channel.Cancel("", false) }()

	select {
	case <-ctx.Done():
		return domain.ReviewJob{}, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return domain.ReviewJob{}, errors.New("amqp queue: delivery channel closed")
		}
		var job domain.ReviewJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			_ = d.Nack(false, false)
			return domain.ReviewJob{}, fmt.Errorf("decode job: %w", err)
		}
		if err := d.Ack(false); err != nil {
			return domain.ReviewJob{}, fmt.Errorf("ack job: %w", err)
		}
		return job, nil
	}
}

// Close закрывает канал и соединение.
func (q *RabbitReviewQueue) Close() error {
	if q.channel != nil {
		_ = q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
