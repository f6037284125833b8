package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Queue interface {
	PublishJSON(ctx context.Context, exchange, key string, mandatory bool, msg any) error
}

// RabbitQueue publishes on a single channel. amqp channels are not safe for
// concurrent publishing, hence the lock.
type RabbitQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex
}

func Dial(uri string) (*RabbitQueue, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	return &RabbitQueue{conn: conn, ch: ch}, nil
}

// Declare makes sure a durable queue with name exists.
func (q *RabbitQueue) Declare(name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, err := q.ch.QueueDeclare(name, true, false, false, false, nil)
	return err
}

func (q *RabbitQueue) PublishJSON(ctx context.Context, exchange, key string, mandatory bool, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.PublishWithContext(ctx, exchange, key, mandatory, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (q *RabbitQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
