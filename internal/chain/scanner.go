package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbuilders/highload-sender/internal/highload"

	"github.com/google/uuid"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
)

type Repository interface {
	GetLastWalletLt(ctx context.Context, walletHash string) (uint64, error)
	UpdateLastWalletLt(ctx context.Context, walletHash string, lt uint64) error
	ConfirmMessage(ctx context.Context, bodyUUID uuid.UUID, txHash string) (bool, error)
}

// Subscriber is the part of ton.APIClientWrapped used by the scanner.
type Subscriber interface {
	SubscribeOnTransactions(workerCtx context.Context, addr *address.Address,
		lastProcessedLT uint64, channel chan<- *tlb.Transaction)
}

type TxScannerConfig struct {
	DBTimeout time.Duration
}

// TxScanner follows the transactions of the wallet and confirms tracked
// external messages when their body shows up as an inbound message.
type TxScanner struct {
	config     *TxScannerConfig
	client     Subscriber
	repo       Repository
	wallet     *address.Address
	walletHash string
	log        *slog.Logger
}

func NewTxScanner(config *TxScannerConfig, client Subscriber, repo Repository,
	wallet *address.Address, walletHash string) *TxScanner {
	return &TxScanner{
		config:     config,
		client:     client,
		repo:       repo,
		wallet:     wallet,
		walletHash: walletHash,
		log:        slog.With("component", "scanner"),
	}
}

func (s *TxScanner) Run(ctx context.Context) error {
	s.log.Debug("Starting tx scanner...")

	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.config.DBTimeout)
	lt, err := s.repo.GetLastWalletLt(ctxWithTimeout, s.walletHash)
	cancel()
	if err != nil {
		return fmt.Errorf("last wallet lt error: %w", err)
	}

	s.log.Debug("Last processed LT", "wallet", s.walletHash, "lt", lt)

	txs := make(chan *tlb.Transaction)
	go s.client.SubscribeOnTransactions(ctx, s.wallet, lt, txs)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Stopping tx scanner...")
			return ctx.Err()
		case tx, ok := <-txs:
			if !ok {
				return fmt.Errorf("transactions subscription is closed")
			}

			if err := s.process(ctx, tx); err != nil {
				return err
			}
		}
	}
}

// process confirms the message of tx, if any, and stores tx.LT. Only storage
// errors are returned, foreign messages are skipped.
func (s *TxScanner) process(ctx context.Context, tx *tlb.Transaction) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.config.DBTimeout)
	defer cancel()

	// process only external in messages
	if tx.IO.In != nil && tx.IO.In.MsgType == tlb.MsgTypeExternalIn {
		msg := tx.IO.In.AsExternalIn()

		info, err := highload.ParseExternalBody(msg.Payload())
		if err != nil {
			s.log.Error("parsing info error", "error", err)
		} else {
			txHash := hex.EncodeToString(tx.Hash)

			confirmed, err := s.repo.ConfirmMessage(ctxWithTimeout, info.UUID, txHash)
			if err != nil {
				return fmt.Errorf("can't save tx confirmation: %w", err)
			}

			s.log.Debug(
				"external message on chain",
				"uuid", info.UUID,
				"query_id", info.QueryID.String(),
				"tx", txHash,
				"tracked", confirmed,
			)
		}
	}

	if err := s.repo.UpdateLastWalletLt(ctxWithTimeout, s.walletHash, tx.LT); err != nil {
		return fmt.Errorf("can't save last lt: %w", err)
	}

	return nil
}
