package chain

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openbuilders/highload-sender/internal/highload"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

var testWallet = address.MustParseAddr("0QB6ZOQd5htYtmB1qxWkd3c1iBoowxnMR5Rt61EscxJnIiou")

type fakeRepo struct {
	mu        sync.Mutex
	lt        uint64
	confirmed map[uuid.UUID]string
	err       error
}

func (r *fakeRepo) GetLastWalletLt(context.Context, string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lt, nil
}

func (r *fakeRepo) UpdateLastWalletLt(_ context.Context, _ string, lt uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lt = lt
	return nil
}

func (r *fakeRepo) ConfirmMessage(_ context.Context, id uuid.UUID, txHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	r.confirmed[id] = txHash
	return true, nil
}

type fakeSubscriber struct {
	txs   []*tlb.Transaction
	since uint64
}

func (f *fakeSubscriber) SubscribeOnTransactions(ctx context.Context, _ *address.Address,
	lt uint64, ch chan<- *tlb.Transaction) {
	f.since = lt
	for _, tx := range f.txs {
		select {
		case ch <- tx:
		case <-ctx.Done():
			return
		}
	}
}

func testEnvelope(t *testing.T) *highload.Envelope {
	t.Helper()

	seed := make([]byte, ed25519.SeedSize)
	env, err := highload.BuildEnvelope(ed25519.NewKeyFromSeed(seed), &highload.EnvelopeParams{
		Message:   cell.BeginCell().EndCell(),
		Mode:      3,
		CreatedAt: time.Now().Unix(),
		Timeout:   300,
		Wallet:    testWallet,
	})
	require.NoError(t, err)

	return env
}

func externalTx(env *highload.Envelope, lt uint64) *tlb.Transaction {
	tx := &tlb.Transaction{LT: lt, Hash: []byte{0xab, 0xcd}}
	tx.IO.In = &tlb.Message{
		MsgType: tlb.MsgTypeExternalIn,
		Msg: &tlb.ExternalMessage{
			DstAddr: testWallet,
			Body:    env.Body,
		},
	}

	return tx
}

func TestTxScanner_ConfirmsTrackedMessages(t *testing.T) {
	env := testEnvelope(t)
	repo := &fakeRepo{lt: 10, confirmed: map[uuid.UUID]string{}}
	sub := &fakeSubscriber{txs: []*tlb.Transaction{
		externalTx(env, 11),
		{LT: 12}, // no inbound message
	}}

	s := NewTxScanner(&TxScannerConfig{DBTimeout: time.Second}, sub, repo, testWallet, "w")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.lt == 12
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.Equal(t, uint64(10), sub.since)
	require.Equal(t, "abcd", repo.confirmed[env.BodyUUID()])
}

func TestTxScanner_StorageErrorStops(t *testing.T) {
	repo := &fakeRepo{confirmed: map[uuid.UUID]string{}, err: errors.New("db is down")}
	s := NewTxScanner(&TxScannerConfig{DBTimeout: time.Second}, &fakeSubscriber{}, repo, testWallet, "w")

	err := s.process(context.Background(), externalTx(testEnvelope(t), 1))
	require.Error(t, err)
}

func TestTxScanner_SkipsForeignBodies(t *testing.T) {
	repo := &fakeRepo{confirmed: map[uuid.UUID]string{}}
	s := NewTxScanner(&TxScannerConfig{DBTimeout: time.Second}, &fakeSubscriber{}, repo, testWallet, "w")

	tx := &tlb.Transaction{LT: 5}
	tx.IO.In = &tlb.Message{
		MsgType: tlb.MsgTypeExternalIn,
		Msg: &tlb.ExternalMessage{
			DstAddr: testWallet,
			Body:    cell.BeginCell().MustStoreUInt(1, 8).EndCell(),
		},
	}

	require.NoError(t, s.process(context.Background(), tx))
	require.Empty(t, repo.confirmed)
	require.Equal(t, uint64(5), repo.lt)
}
