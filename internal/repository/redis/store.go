package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "highload:query_id:"

// QueryIDStore keeps the last issued query id of each wallet in Redis.
type QueryIDStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewQueryIDStore(client *redis.Client) *QueryIDStore {
	return &QueryIDStore{
		client: client,
		log:    slog.With("component", "redis-store"),
	}
}

func (s *QueryIDStore) LoadQueryID(ctx context.Context, walletHash string) (
	uint64, bool, error) {

	value, err := s.client.Get(ctx, keyPrefix+walletHash).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("couldn't load query id: %w", err)
	}

	return value, true, nil
}

func (s *QueryIDStore) SaveQueryID(ctx context.Context, walletHash string,
	queryID uint64) error {

	err := s.client.Set(ctx, keyPrefix+walletHash, queryID, 0).Err()
	if err != nil {
		return fmt.Errorf("couldn't save query id: %w", err)
	}

	s.log.Debug("saved query id", "wallet", walletHash, "query_id", queryID)

	return nil
}
