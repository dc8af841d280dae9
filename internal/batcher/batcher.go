package batcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbuilders/highload-sender/internal/queue"
	"github.com/openbuilders/highload-sender/internal/types"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Config struct {
	BatchSize       int
	ParallelBatches int
	BatchInterval   time.Duration
}

// Batcher reads send requests from the queue and groups their transfers
// into batches of at most BatchSize.
type Batcher struct {
	Batches   chan types.Batch
	config    *Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	consume   func() (<-chan amqp.Delivery, error)
	log       *slog.Logger
	reconnect bool
}

func New(config *Config, conn *amqp.Connection) *Batcher {
	b := &Batcher{
		Batches: make(chan types.Batch, config.ParallelBatches),
		config:  config,
		conn:    conn,
		log:     slog.With("component", "batcher"),
	}
	b.consume = b.restartConsumer

	return b
}

func (b *Batcher) Run(ctx context.Context) error {
	b.log.Info("Starting batcher")

	if b.conn != nil {
		ch, err := queue.EnsureQueueExists(b.conn, queue.QueueSendRequests)
		if err != nil {
			return err
		}
		// we'll open a new channel for the consumer anyway
		ch.Close()
	}

	messages, err := b.consume()
	if err != nil {
		return err
	}

	ticker := time.NewTicker(b.config.BatchInterval)
	defer ticker.Stop()

	batch := make([]types.Transfer, 0, b.config.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		transfers := make([]types.Transfer, len(batch))
		copy(transfers, batch)
		batch = batch[:0]

		select {
		case b.Batches <- types.Batch{UUID: uuid.New(), Transfers: transfers}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		if b.reconnect {
			b.log.Debug("Reconnection is needed")

			messages, err = b.consume()
			if err != nil {
				return err
			}

			b.reconnect = false
		}

		select {
		case <-ctx.Done():
			b.log.Info("Stopping batcher...")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				b.log.Debug("Queue is closed, flushing")
				if err := flush(); err != nil {
					return err
				}
				return fmt.Errorf("queue is closed")
			}

			for _, transfer := range b.handleMessage(msg) {
				batch = append(batch, transfer)
				if len(batch) >= b.config.BatchSize {
					b.log.Debug(
						"Reached the max batch size, processing right away",
						"max", b.config.BatchSize,
					)
					if err := flush(); err != nil {
						return err
					}
				}
			}

		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

func (b *Batcher) restartConsumer() (<-chan amqp.Delivery, error) {
	if b.channel != nil && !b.channel.IsClosed() {
		b.channel.Close()
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := ch.Qos(b.config.BatchSize, 0, false); err != nil {
		return nil, fmt.Errorf("couldn't set qos: %w", err)
	}

	b.channel = ch

	return ch.Consume(
		string(queue.QueueSendRequests), // queue
		"batcher",                       // consumer
		false,                           // autoAck
		false,                           // exclusive
		false,                           // noLocal
		false,                           // no wait
		nil,                             // args
	)
}

// handleMessage parses and validates a send request. The message is acked
// on receipt, a malformed request is dropped as a whole.
func (b *Batcher) handleMessage(message amqp.Delivery) []types.Transfer {
	if err := message.Ack(false); err != nil {
		// unacked messages count against the prefetch window, once it's full
		// the consumer stops receiving, so the channel is recreated right away
		b.log.Error(
			"Message ack error",
			"message", string(message.Body),
			"error", err,
		)
		b.reconnect = true

		return nil
	}

	var req types.SendRequest
	if err := json.Unmarshal(message.Body, &req); err != nil {
		b.log.Error(
			"request unmarshalling error",
			"body", string(message.Body),
			"error", err,
		)
		return nil
	}

	if err := req.Validate(); err != nil {
		b.log.Error("invalid request, dropping", "request_id", req.RequestID,
			"error", err)
		return nil
	}

	for i := range req.Transfers {
		req.Transfers[i].RequestID = req.RequestID
	}

	return req.Transfers
}
