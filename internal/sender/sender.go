package sender

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openbuilders/highload-sender/internal/highload"
	"github.com/openbuilders/highload-sender/internal/metrics"
	"github.com/openbuilders/highload-sender/internal/tonapi"
	"github.com/openbuilders/highload-sender/internal/types"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Key         ed25519.PrivateKey
	Wallet      *address.Address
	WalletHash  string
	SubwalletID uint32
	// Timeout is the validity window of a message, stored in 22 bits.
	Timeout time.Duration
	// CreatedAtLag moves created_at into the past, liteservers reject
	// externals created after the time of the block they emulate on.
	CreatedAtLag time.Duration
	// FeeReserve is added to the amount of a batch to fund the forwards.
	FeeReserve              tlb.Coins
	NumWorkers              int
	DBTimeout               time.Duration
	ExpirationCheckInterval time.Duration
}

// Validate rejects a config the wallet contract could never accept.
func (c *Config) Validate() error {
	if len(c.Key) != ed25519.PrivateKeySize {
		return fmt.Errorf("invalid wallet key size %d", len(c.Key))
	}
	if c.Wallet == nil {
		return fmt.Errorf("wallet address is required")
	}
	if _, err := highload.TimeoutSeconds(c.Timeout); err != nil {
		return fmt.Errorf("invalid message timeout: %w", err)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("number of workers must be positive")
	}

	return nil
}

type Submitter interface {
	Name() string
	Submit(ctx context.Context, env *highload.Envelope) error
}

type Tracker interface {
	Track(ctx context.Context, hash string) (tonapi.Outcome, string)
}

type QueryIDs interface {
	Next(ctx context.Context) (highload.QueryID, error)
}

type Repository interface {
	PersistMessage(ctx context.Context, msg *types.MessageRecord) error
	UpdateMessageStatus(ctx context.Context, hash string,
		status types.MessageStatus, txHash, errMsg string) error
	ExpireMessages(ctx context.Context, now time.Time) (int64, error)
}

// Service signs batches of transfers with the highload wallet key and
// submits them, one external message per batch.
type Service struct {
	config    *Config
	queryIDs  QueryIDs
	submitter Submitter
	tracker   Tracker
	repo      Repository
	batches   <-chan types.Batch
	now       func() time.Time
	log       *slog.Logger

	// trackCtx outlives the request that submitted a message and is
	// cancelled once Run returns.
	trackCtx     context.Context
	stopTracking context.CancelFunc
	trackMu      sync.Mutex
	stopped      bool
	tracking     sync.WaitGroup
}

// New creates the service, tracker may be nil.
func New(config *Config, queryIDs QueryIDs, submitter Submitter,
	tracker Tracker, repo Repository, batches <-chan types.Batch) *Service {
	trackCtx, stopTracking := context.WithCancel(context.Background())

	return &Service{
		trackCtx:     trackCtx,
		stopTracking: stopTracking,
		config:    config,
		queryIDs:  queryIDs,
		submitter: submitter,
		tracker:   tracker,
		repo:      repo,
		batches:   batches,
		now:       time.Now,
		log: slog.With(
			"component", "sender",
			"wallet", config.WalletHash,
			"submitter", submitter.Name(),
		),
	}
}

func (s *Service) Run(ctx context.Context) error {
	s.log.Info("Starting sender", "workers", s.config.NumWorkers)
	defer s.shutdownTracking()

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < s.config.NumWorkers; i++ {
		i := i
		g.Go(func() error {
			return s.worker(ctx, i)
		})
	}

	g.Go(func() error {
		return s.expireLoop(ctx)
	})

	err := g.Wait()
	s.log.Info("Sender stopped")

	return err
}

// startTracking follows the outcome of hash in the background. Once the
// service is stopped new messages are left for the expiry check.
func (s *Service) startTracking(hash string) {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	if s.stopped {
		s.log.Debug("sender is stopped, message is not tracked", "hash", hash)
		return
	}

	s.tracking.Add(1)
	go func() {
		defer s.tracking.Done()
		s.track(s.trackCtx, hash)
	}()
}

func (s *Service) shutdownTracking() {
	s.trackMu.Lock()
	s.stopped = true
	s.trackMu.Unlock()

	s.stopTracking()
	s.tracking.Wait()
}

func (s *Service) worker(ctx context.Context, id int) error {
	log := s.log.With("worker", id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-s.batches:
			if !ok {
				log.Debug("Batches channel is closed")
				return nil
			}

			log.Debug("Received a new batch",
				"batch", batch.UUID, "transfers", len(batch.Transfers))

			result, err := s.SendBatch(ctx, batch)
			if errors.Is(err, highload.ErrExhausted) {
				log.Error("no query ids left, stopping", "error", err)
				return err
			}
			if err != nil {
				log.Error("couldn't send batch", "batch", batch.UUID, "error", err)
				continue
			}

			log.Info("Batch sent",
				"batch", batch.UUID,
				"hash", result.Hash,
				"query_id", result.QueryID.String(),
				"actions", result.Actions,
			)
		}
	}
}

func (s *Service) expireLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.ExpirationCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.expire(ctx)
		}
	}
}

func (s *Service) expire(ctx context.Context) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.config.DBTimeout)
	defer cancel()

	n, err := s.repo.ExpireMessages(ctxWithTimeout, s.now())
	if err != nil {
		s.log.Error("couldn't expire messages", "error", err)
		return
	}

	if n > 0 {
		s.log.Info("Messages expired", "count", n)
		metrics.MessagesExpired.Add(float64(n))
	}
}
