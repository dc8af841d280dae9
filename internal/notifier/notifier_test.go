package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openbuilders/highload-sender/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu       sync.Mutex
	results  []types.MessageRecord
	notified []string
}

func (r *fakeRepo) GetUnnotifiedResults(_ context.Context, limit int64) ([]types.MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []types.MessageRecord
	for _, res := range r.results {
		if !r.isNotified(res.Hash) && int64(len(pending)) < limit {
			pending = append(pending, res)
		}
	}
	return pending, nil
}

func (r *fakeRepo) isNotified(hash string) bool {
	for _, h := range r.notified {
		if h == hash {
			return true
		}
	}
	return false
}

func (r *fakeRepo) MarkNotified(_ context.Context, hashes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, hashes...)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	failAt   int
}

func (p *fakePublisher) Publish(_ context.Context, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failAt > 0 && len(p.messages)+1 == p.failAt {
		p.failAt = 0
		return errors.New("channel closed")
	}
	p.messages = append(p.messages, message)
	return nil
}

func results() []types.MessageRecord {
	return []types.MessageRecord{
		{Hash: "h1", BatchUUID: uuid.New(), RequestIDs: []string{"r1"}, Status: types.StatusSuccess, TxHash: "t1"},
		{Hash: "h2", BatchUUID: uuid.New(), RequestIDs: []string{"r2"}, Status: types.StatusExpired},
		{Hash: "h3", BatchUUID: uuid.New(), RequestIDs: []string{"r3"}, Status: types.StatusFailed, Error: "rejected"},
	}
}

func testConfig() *Config {
	return &Config{BatchSize: 10, PollInterval: time.Hour, DBTimeout: time.Second}
}

func TestNotifier_PublishesResults(t *testing.T) {
	repo := &fakeRepo{results: results()}
	pub := &fakePublisher{}

	New(testConfig(), pub, repo).notify(context.Background())

	require.Len(t, pub.messages, 3)
	require.Equal(t, []string{"h1", "h2", "h3"}, repo.notified)

	var first MessageResultNotification
	require.NoError(t, json.Unmarshal(pub.messages[0], &first))
	require.Equal(t, PatternMessageStatus, first.Pattern)
	require.Equal(t, types.StatusSuccess, first.Data.Status)
	require.Equal(t, "t1", first.Data.TxHash)
	require.Equal(t, []string{"r1"}, first.Data.RequestIDs)
}

func TestNotifier_RetriesAfterPublishFailure(t *testing.T) {
	repo := &fakeRepo{results: results()}
	pub := &fakePublisher{failAt: 2}
	n := New(testConfig(), pub, repo)

	n.notify(context.Background())
	require.Equal(t, []string{"h1"}, repo.notified)

	n.notify(context.Background())
	require.Equal(t, []string{"h1", "h2", "h3"}, repo.notified)
	require.Len(t, pub.messages, 3)
}

func TestNotifier_Start(t *testing.T) {
	repo := &fakeRepo{results: results()}
	pub := &fakePublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(testConfig(), pub, repo).Start(ctx) }()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.notified) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
