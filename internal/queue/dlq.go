package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cutlinehq/cutline/pkg/models"
)

const (
	DeadLetterQueueName    = "export_jobs_dlq"
	DeadLetterExchangeName = "cutline_dlq"
	RetryQueueName         = "export_jobs_retry"
	MaxRetries             = 3
)

// SetupDeadLetterQueue sets up the dead letter queue infrastructure
func (q *Queue) SetupDeadLetterQueue() error {
	// Declare dead letter exchange
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

	// Declare dead letter queue
	_, err = q.channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	// Bind DLQ to exchange
	err = q.channel.QueueBind(
		DeadLetterQueueName,
		DeadLetterQueueName,
		DeadLetterExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	// Declare retry queue with TTL; expired messages flow back to the
	// main export queue
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": ExportQueueName,
		"x-message-ttl":             60000, // 1 minute
	}

	_, err = q.channel.QueueDeclare(
		RetryQueueName,
		true,
		false,
		false,
		false,
		retryArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	return nil
}

// PublishExportRetry re-queues a failed export through the retry queue,
// or dead-letters it once MaxRetries is exhausted
func (q *Queue) PublishExportRetry(ctx context.Context, req *models.ExportRequest, retryCount int) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal export request: %w", err)
	}

	publishing := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"x-retry-count": strconv.Itoa(retryCount),
		},
	}

	if retryCount >= MaxRetries {
		err = q.channel.PublishWithContext(ctx,
			DeadLetterExchangeName,
			DeadLetterQueueName,
			false,
			false,
			publishing,
		)
		if err != nil {
			return fmt.Errorf("failed to dead-letter export request: %w", err)
		}
		return nil
	}

	err = q.channel.PublishWithContext(ctx,
		"",
		RetryQueueName,
		false,
		false,
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish export retry: %w", err)
	}

	return nil
}

// RetryCount extracts the retry counter from a delivery's headers
func RetryCount(msg amqp.Delivery) int {
	raw, ok := msg.Headers["x-retry-count"]
	if !ok {
		return 0
	}
	s, ok := raw.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
