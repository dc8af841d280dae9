package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/openbuilders/highload-sender/internal/types"

	"github.com/google/uuid"
)

type Config struct {
	BatchSize    int64
	PollInterval time.Duration
	DBTimeout    time.Duration
}

const (
	PatternMessageStatus = "message-status"
)

type MessageResultData struct {
	Hash       string              `json:"hash"`
	BatchUUID  uuid.UUID           `json:"batch_uuid"`
	RequestIDs []string            `json:"request_ids"`
	QueryID    int64               `json:"query_id"`
	Status     types.MessageStatus `json:"status"`
	TxHash     string              `json:"tx_hash,omitempty"`
	Error      string              `json:"error,omitempty"`
}

type MessageResultNotification struct {
	Pattern string            `json:"pattern"`
	Data    MessageResultData `json:"data"`
}

type Repository interface {
	GetUnnotifiedResults(ctx context.Context, limit int64) ([]types.MessageRecord, error)
	MarkNotified(ctx context.Context, hashes []string) error
}

type Publisher interface {
	Publish(ctx context.Context, message []byte) error
}

// Notifier publishes final statuses of messages to the statuses queue.
type Notifier struct {
	config    *Config
	publisher Publisher
	repo      Repository
	log       *slog.Logger
}

func New(config *Config, publisher Publisher, repo Repository) *Notifier {
	return &Notifier{
		config:    config,
		publisher: publisher,
		repo:      repo,
		log:       slog.With("component", "notifier"),
	}
}

func (n *Notifier) Start(ctx context.Context) error {
	n.log.Info("Starting notifier...")

	pollInterval := time.Duration(0)

	for {
		select {
		case <-ctx.Done():
			n.log.Info("Stopping notifier.")
			return nil

		case <-time.After(pollInterval):
			pollInterval = n.config.PollInterval
			n.notify(ctx)
		}
	}
}

// notify publishes one page of results. Results published before a failure
// are still marked, the rest is retried on the next poll.
func (n *Notifier) notify(ctx context.Context) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, n.config.DBTimeout)
	results, err := n.repo.GetUnnotifiedResults(ctxWithTimeout, n.config.BatchSize)
	cancel()
	if err != nil {
		n.log.Error("couldn't get message results", "error", err)
		return
	}

	hashes := make([]string, 0, len(results))

	for _, result := range results {
		payload := MessageResultNotification{
			Pattern: PatternMessageStatus,
			Data: MessageResultData{
				Hash:       result.Hash,
				BatchUUID:  result.BatchUUID,
				RequestIDs: result.RequestIDs,
				QueryID:    result.QueryID,
				Status:     result.Status,
				TxHash:     result.TxHash,
				Error:      result.Error,
			},
		}

		jsonData, err := json.Marshal(payload)
		if err != nil {
			n.log.Error("error marshaling JSON", "payload", payload, "error", err)
			break
		}

		n.log.Debug("Sending notification", "payload", string(jsonData))

		if err := n.publisher.Publish(ctx, jsonData); err != nil {
			n.log.Error(
				"couldn't enqueue message",
				"message", string(jsonData),
				"error", err,
			)
			break
		}

		hashes = append(hashes, result.Hash)
	}

	if len(hashes) == 0 {
		return
	}

	ctxWithTimeout, cancel = context.WithTimeout(ctx, n.config.DBTimeout)
	defer cancel()

	err = n.repo.MarkNotified(ctxWithTimeout, hashes)
	if err != nil {
		n.log.Error(
			"couldn't persist notification results",
			"hashes", hashes,
			"error", err,
		)
		return
	}

	n.log.Debug("Notified message results", "hashes", hashes)
}
