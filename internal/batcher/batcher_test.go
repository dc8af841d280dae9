package batcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/openbuilders/highload-sender/internal/types"

	"github.com/stretchr/testify/require"
	amqp "github.com/rabbitmq/amqp091-go"
)

const testRecipient = "0QAFyfwn13L8oi30vdWBV41zFaHzCa6mJpVEjCeaDUAqmGcO"

type fakeAcknowledger struct {
	mu    sync.Mutex
	acked []uint64
	err   error
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(uint64, bool, bool) error { return nil }
func (a *fakeAcknowledger) Reject(uint64, bool) error     { return nil }

func delivery(t *testing.T, ack amqp.Acknowledger, tag uint64, req types.SendRequest) amqp.Delivery {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body}
}

func request(id string, n int) types.SendRequest {
	req := types.SendRequest{RequestID: id}
	for i := 0; i < n; i++ {
		req.Transfers = append(req.Transfers, types.Transfer{
			Wallet:  testRecipient,
			Amount:  "0.01",
			Comment: fmt.Sprintf("%s-%d", id, i),
		})
	}
	return req
}

func newTestBatcher(config *Config, messages chan amqp.Delivery) *Batcher {
	b := New(config, nil)
	b.consume = func() (<-chan amqp.Delivery, error) { return messages, nil }
	return b
}

func TestBatcher_FlushesOnSize(t *testing.T) {
	messages := make(chan amqp.Delivery, 4)
	ack := &fakeAcknowledger{}
	b := newTestBatcher(&Config{BatchSize: 3, ParallelBatches: 4, BatchInterval: time.Hour}, messages)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()

	messages <- delivery(t, ack, 1, request("a", 2))
	messages <- delivery(t, ack, 2, request("b", 2))

	batch := <-b.Batches
	require.Len(t, batch.Transfers, 3)
	require.Equal(t, []string{"a", "b"}, batch.RequestIDs())
	require.Equal(t, "a-0", batch.Transfers[0].Comment)
	require.Equal(t, "b-0", batch.Transfers[2].Comment)
}

func TestBatcher_FlushesOnInterval(t *testing.T) {
	messages := make(chan amqp.Delivery, 1)
	ack := &fakeAcknowledger{}
	b := newTestBatcher(&Config{BatchSize: 100, ParallelBatches: 1, BatchInterval: 10 * time.Millisecond}, messages)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()

	messages <- delivery(t, ack, 1, request("a", 2))

	select {
	case batch := <-b.Batches:
		require.Len(t, batch.Transfers, 2)
	case <-time.After(time.Second):
		t.Fatal("batch was not flushed")
	}

	ack.mu.Lock()
	defer ack.mu.Unlock()
	require.Equal(t, []uint64{1}, ack.acked)
}

func TestBatcher_FlushesWhenQueueCloses(t *testing.T) {
	messages := make(chan amqp.Delivery, 1)
	b := newTestBatcher(&Config{BatchSize: 100, ParallelBatches: 1, BatchInterval: time.Hour}, messages)

	messages <- delivery(t, &fakeAcknowledger{}, 1, request("a", 1))
	close(messages)

	err := b.Run(context.Background())
	require.Error(t, err)

	batch := <-b.Batches
	require.Len(t, batch.Transfers, 1)
}

func TestBatcher_DropsInvalidRequests(t *testing.T) {
	b := New(&Config{BatchSize: 10, ParallelBatches: 1, BatchInterval: time.Hour}, nil)
	ack := &fakeAcknowledger{}

	bad := request("a", 2)
	bad.Transfers[1].Wallet = "nope"
	require.Empty(t, b.handleMessage(delivery(t, ack, 1, bad)))

	require.Empty(t, b.handleMessage(amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("{")}))

	transfers := b.handleMessage(delivery(t, ack, 3, request("c", 1)))
	require.Len(t, transfers, 1)
	require.Equal(t, "c", transfers[0].RequestID)

	require.Equal(t, []uint64{1, 2, 3}, ack.acked)
	require.False(t, b.reconnect)
}

func TestBatcher_AckErrorReconnects(t *testing.T) {
	b := New(&Config{BatchSize: 10, ParallelBatches: 1, BatchInterval: time.Hour}, nil)
	ack := &fakeAcknowledger{err: errors.New("channel closed")}

	require.Empty(t, b.handleMessage(delivery(t, ack, 1, request("a", 1))))
	require.True(t, b.reconnect)
}
