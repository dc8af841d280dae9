package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type QueueName string

const (
	QueueSendRequests QueueName = "highload_send"
	QueueStatuses     QueueName = "highload_status"
)

// EnsureQueueExists declares a durable queue and returns the channel used
// for the declaration.
func EnsureQueueExists(conn *amqp.Connection, name QueueName) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("couldn't open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		string(name), // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("couldn't declare queue %s: %w", name, err)
	}

	return ch, nil
}

// Publisher sends persistent JSON messages to a single queue.
type Publisher struct {
	queueName QueueName
	conn      *amqp.Connection
	channel   *amqp.Channel
	mu        sync.Mutex
	log       *slog.Logger
}

func NewPublisher(conn *amqp.Connection, queueName QueueName) *Publisher {
	return &Publisher{
		queueName: queueName,
		conn:      conn,
		log:       slog.With("component", "publisher", "queue", queueName),
	}
}

func (p *Publisher) Publish(ctx context.Context, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		ch, err := EnsureQueueExists(p.conn, p.queueName)
		if err != nil {
			return err
		}
		p.channel = ch
	}

	err := p.channel.PublishWithContext(ctx,
		"",                  // exchange, empty means default (direct to queue)
		string(p.queueName), // routing key = queue name
		false,               // mandatory
		false,               // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         message,
		},
	)
	if err != nil {
		p.log.Error("Failed to publish", "message", string(message), "error", err)
		return fmt.Errorf("couldn't publish: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		return nil
	}

	return p.channel.Close()
}
