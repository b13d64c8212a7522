package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/metrics"
)

const (
	reasonMaxDeliveries = "max deliveries exceeded"
	reasonJobTimeout    = "job timeout"
)

// Handler processes one queue item. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, itemID string) error

// TerminalHandler is invoked once a queue item will not be delivered again
type TerminalHandler func(ctx context.Context, itemID string, cause error)

// ConsumeOptions controls the consumer pool
type ConsumeOptions struct {
	Concurrency int
	JobTimeout  time.Duration
}

// Consume starts opts.Concurrency consumers on the work queue. In-flight jobs
// run to completion after ctx is cancelled; use Wait to block on them.
func (q *Queue) Consume(ctx context.Context, opts ConsumeOptions, handler Handler, terminal TerminalHandler) error {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	err := q.channel.Qos(
		opts.Concurrency, // prefetch count
		0,                // prefetch size
		false,            // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		q.name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for i := 0; i < opts.Concurrency; i++ {
		q.wg.Add(1)
		go func(workerID int) {
			defer q.wg.Done()
			q.logger.WithWorkerID(fmt.Sprintf("consumer-%d", workerID)).Debug("Consumer started")

			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					q.handleDelivery(ctx, msg, opts.JobTimeout, handler, terminal)
				}
			}
		}(i)
	}

	return nil
}

// Wait blocks until every consumer goroutine has returned
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) handleDelivery(ctx context.Context, d amqp.Delivery, timeout time.Duration, handler Handler, terminal TerminalHandler) {
	bg := context.WithoutCancel(ctx)

	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.QueueItemID == "" {
		metrics.RecordMalformedMessage()
		q.logger.WithField("delivery_tag", d.DeliveryTag).Warn("Rejecting malformed queue message")
		_ = d.Nack(false, false)
		return
	}

	attempt := deliveryAttempt(d.Headers)
	logger := q.logger.WithQueueItemID(msg.QueueItemID).WithField("attempt", attempt)

	jobCtx, cancel := bg, context.CancelFunc(func() {})
	if timeout > 0 {
		jobCtx, cancel = context.WithTimeout(bg, timeout)
	}
	err := handler(jobCtx, msg.QueueItemID)
	timedOut := errors.Is(jobCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err == nil {
		_ = d.Ack(false)
		return
	}

	if !timedOut && shouldRetry(attempt, q.maxDeliveries) {
		if perr := q.publishRetry(bg, msg, attempt+1); perr != nil {
			logger.WithError(perr).Error("Failed to schedule redelivery, returning message to queue")
			_ = d.Nack(false, true)
			return
		}
		metrics.RecordRedelivery()
		_ = d.Ack(false)
		return
	}

	reason := reasonMaxDeliveries
	if timedOut {
		reason = reasonJobTimeout
	}
	logger.WithError(err).WithField("reason", reason).Error("Queue item will not be redelivered")

	terminal(bg, msg.QueueItemID, err)
	metrics.RecordDeadLetter(reason)

	if perr := q.publishDeadLetter(bg, msg, reason, err); perr != nil {
		logger.WithError(perr).Error("Failed to publish to dead letter queue")
	}
	_ = d.Ack(false)
}
