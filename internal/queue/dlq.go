package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DeadLetterExchangeName = "captions_dlq"

	failureReasonHeader = "x-failure-reason"
	failureErrorHeader  = "x-failure-error"
	failedAtHeader      = "x-failed-at"
)

// declareDeadLetter sets up the dead letter exchange and queue plus the retry
// queue. Messages in the retry queue expire after the fixed retry delay and are
// dead-lettered back onto the work queue.
func (q *Queue) declareDeadLetter() error {
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(q.deadName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	if err := q.channel.QueueBind(q.deadName, q.deadName, DeadLetterExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	_, err = q.channel.QueueDeclare(q.retryName, true, false, false, false, q.retryArgs())
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	q.logger.Info("Dead letter queue infrastructure set up successfully")
	return nil
}

func (q *Queue) retryArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": q.name,
		"x-message-ttl":             q.retryDelay.Milliseconds(),
	}
}

// publishRetry parks the message in the retry queue for the fixed retry delay
func (q *Queue) publishRetry(ctx context.Context, msg Message, attempt int) error {
	headers := amqp.Table{
		deliveryAttemptHeader: int32(attempt),
	}

	if err := q.publish(ctx, "", q.retryName, msg, headers); err != nil {
		return err
	}

	q.logger.WithQueueItemID(msg.QueueItemID).
		WithField("attempt", attempt).
		WithField("delay", q.retryDelay.String()).
		Info("Queue item scheduled for redelivery")
	return nil
}

// publishDeadLetter moves a message that exhausted its delivery budget to the DLQ
func (q *Queue) publishDeadLetter(ctx context.Context, msg Message, reason string, cause error) error {
	headers := amqp.Table{
		failureReasonHeader: reason,
		failedAtHeader:      time.Now().Format(time.RFC3339),
	}
	if cause != nil {
		headers[failureErrorHeader] = cause.Error()
	}

	if err := q.publish(ctx, DeadLetterExchangeName, q.deadName, msg, headers); err != nil {
		return err
	}

	q.logger.WithQueueItemID(msg.QueueItemID).
		WithField("reason", reason).
		Warn("Queue item moved to dead letter queue")
	return nil
}

// DLQDepth returns the number of messages in the dead letter queue
func (q *Queue) DLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(q.deadName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}

// deliveryAttempt reads the 1-based delivery attempt from message headers
func deliveryAttempt(headers amqp.Table) int {
	var attempt int
	switch v := headers[deliveryAttemptHeader].(type) {
	case int:
		attempt = v
	case int32:
		attempt = int(v)
	case int64:
		attempt = int(v)
	case int16:
		attempt = int(v)
	case int8:
		attempt = int(v)
	}

	if attempt < 1 {
		return 1
	}
	return attempt
}

func shouldRetry(attempt, maxDeliveries int) bool {
	return attempt < maxDeliveries
}
