package allocator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openbuilders/highload-sender/internal/highload"
)

// Store persists the last issued query id of a wallet.
type Store interface {
	// LoadQueryID returns false if nothing has been stored for the wallet yet.
	LoadQueryID(ctx context.Context, walletHash string) (uint64, bool, error)
	SaveQueryID(ctx context.Context, walletHash string, queryID uint64) error
}

// Allocator hands out query ids of one wallet in increasing order and
// persists every id before returning it, so a restart never reissues one.
//
// It does not know whether the contract has already cleaned the slot of an
// id, callers restoring an old state must make sure the previous use of the
// slot is older than the wallet timeout.
type Allocator struct {
	store      Store
	walletHash string
	start      highload.QueryID
	last       *highload.QueryID
	mu         sync.Mutex
	log        *slog.Logger
}

// New creates an allocator. start is the first id issued when the store has
// nothing for the wallet.
func New(store Store, walletHash string, start highload.QueryID) *Allocator {
	return &Allocator{
		store:      store,
		walletHash: walletHash,
		start:      start,
		log:        slog.With("component", "allocator", "wallet", walletHash),
	}
}

// Next returns a fresh query id. highload.ErrExhausted is returned once the
// whole space has been used.
func (a *Allocator) Next(ctx context.Context) (highload.QueryID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.restore(ctx); err != nil {
		return highload.QueryID{}, err
	}

	next := a.start
	if a.last != nil {
		var err error
		next, err = a.last.Next()
		if err != nil {
			a.log.Error("query id space exhausted", "last", a.last.String())
			return highload.QueryID{}, err
		}
	}

	err := a.store.SaveQueryID(ctx, a.walletHash, next.Uint64())
	if err != nil {
		return highload.QueryID{}, fmt.Errorf("couldn't persist query id: %w", err)
	}

	a.last = &next
	a.log.Debug("allocated query id", "query_id", next.String())

	return next, nil
}

// Last returns the last issued query id, false if none was issued yet.
func (a *Allocator) Last(ctx context.Context) (highload.QueryID, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.restore(ctx); err != nil {
		return highload.QueryID{}, false, err
	}

	if a.last == nil {
		return highload.QueryID{}, false, nil
	}

	return *a.last, true, nil
}

// restore loads the persisted state once, a.mu must be held.
func (a *Allocator) restore(ctx context.Context) error {
	if a.last != nil {
		return nil
	}

	value, ok, err := a.store.LoadQueryID(ctx, a.walletHash)
	if err != nil {
		return fmt.Errorf("couldn't restore query id: %w", err)
	}
	if !ok {
		return nil
	}

	last, err := highload.FromInteger(value)
	if err != nil {
		return fmt.Errorf("stored query id is invalid: %w", err)
	}

	a.log.Info("restored query id", "query_id", last.String())
	a.last = &last

	return nil
}
