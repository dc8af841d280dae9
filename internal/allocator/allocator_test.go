package allocator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/openbuilders/highload-sender/internal/highload"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	values  map[string]uint64
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]uint64{}}
}

func (m *memoryStore) LoadQueryID(_ context.Context, wallet string) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[wallet]
	return v, ok, nil
}

func (m *memoryStore) SaveQueryID(_ context.Context, wallet string, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.values[wallet] = v
	return nil
}

func TestAllocator_StartsFromStart(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	start, err := highload.FromShiftAndBitNumber(0, 1)
	require.NoError(t, err)

	a := New(store, "w1", start)

	_, ok, err := a.Last(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	first, err := a.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, start, first)

	second, err := a.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), second.Uint64())
	require.Equal(t, uint64(2), store.values["w1"])
}

func TestAllocator_RestoresAfterRestart(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	a := New(store, "w1", highload.QueryID{})
	for i := 0; i < 1030; i++ {
		_, err := a.Next(ctx)
		require.NoError(t, err)
	}

	restarted := New(store, "w1", highload.QueryID{})
	last, ok, err := restarted.Last(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1029), last.Uint64())

	next, err := restarted.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), next.Shift())
	require.Equal(t, uint64(7), next.BitNumber())
}

func TestAllocator_Exhausted(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.values["w1"] = highload.MAX_QUERY_ID

	a := New(store, "w1", highload.QueryID{})

	_, err := a.Next(ctx)
	require.True(t, errors.Is(err, highload.ErrExhausted), "got %v", err)
	require.Equal(t, uint64(highload.MAX_QUERY_ID), store.values["w1"])
}

func TestAllocator_SaveFailureDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	a := New(store, "w1", highload.QueryID{})

	_, err := a.Next(ctx)
	require.NoError(t, err)

	store.saveErr = errors.New("db is down")
	_, err = a.Next(ctx)
	require.Error(t, err)

	store.saveErr = nil
	next, err := a.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), next.Uint64())
}

func TestAllocator_Concurrent(t *testing.T) {
	ctx := context.Background()
	a := New(newMemoryStore(), "w1", highload.QueryID{})

	const workers, perWorker = 8, 200

	var mu sync.Mutex
	seen := map[uint64]struct{}{}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				q, err := a.Next(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[q.Uint64()] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
