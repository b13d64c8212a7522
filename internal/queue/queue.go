package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/config"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
)

const (
	ExchangeName = "captions"

	deliveryAttemptHeader = "x-delivery-attempt"
)

// Message is the body of a caption job. Only the queue item id travels on the
// wire; everything else is loaded from the store.
type Message struct {
	QueueItemID string `json:"queue_item_id"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	pubMu sync.Mutex
	pub   publisher

	name          string
	retryName     string
	deadName      string
	maxDeliveries int
	retryDelay    time.Duration

	logger *logging.Logger
	wg     sync.WaitGroup
}

// New creates a new queue client and declares the work, retry and dead letter queues
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := newQueue(cfg, channel, logger)
	q.conn = conn
	q.channel = channel

	if err := q.declare(); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return q, nil
}

func newQueue(cfg config.QueueConfig, pub publisher, logger *logging.Logger) *Queue {
	maxDeliveries := cfg.MaxDeliveries
	if maxDeliveries < 1 {
		maxDeliveries = 1
	}

	return &Queue{
		pub:           pub,
		name:          cfg.Name,
		retryName:     cfg.Name + "_retry",
		deadName:      cfg.Name + "_dlq",
		maxDeliveries: maxDeliveries,
		retryDelay:    cfg.RetryDelay,
		logger:        logger,
	}
}

func (q *Queue) declare() error {
	err := q.channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		q.name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := q.channel.QueueBind(q.name, q.name, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return q.declareDeadLetter()
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// Publish enqueues a caption job for the given queue item
func (q *Queue) Publish(ctx context.Context, itemID string) error {
	return q.publish(ctx, ExchangeName, q.name, Message{QueueItemID: itemID}, nil)
}

// Requeue publishes the item again with a fresh delivery budget
func (q *Queue) Requeue(ctx context.Context, itemID string) error {
	if err := q.Publish(ctx, itemID); err != nil {
		return err
	}
	q.logger.LogQueueItemEvent(itemID, "requeued", "", nil)
	return nil
}

func (q *Queue) publish(ctx context.Context, exchange, key string, msg Message, headers amqp.Table) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	err = q.pub.PublishWithContext(ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", key, err)
	}

	return nil
}

// Depth returns the number of messages waiting in the work queue
func (q *Queue) Depth() (int, error) {
	info, err := q.channel.QueueInspect(q.name)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
