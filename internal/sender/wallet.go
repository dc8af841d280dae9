package sender

import (
	"context"
	"fmt"
	"math/big"

	"github.com/openbuilders/highload-sender/internal/highload"
	"github.com/openbuilders/highload-sender/internal/metrics"
	"github.com/openbuilders/highload-sender/internal/tonapi"
	"github.com/openbuilders/highload-sender/internal/types"

	"github.com/google/uuid"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// TransferMode is the send mode of every transfer action of a batch, a
// failing transfer must not abort the rest of the out list.
const TransferMode = uint8(wallet.PayGasSeparately + wallet.IgnoreErrors)

type Result struct {
	Hash    string
	QueryID highload.QueryID
	Actions int
	Status  types.MessageStatus
}

// SendBatch packs the transfers of batch into a single external message
// and submits it. The message is persisted before submission, a submission
// error is returned along with a failed result.
func (s *Service) SendBatch(ctx context.Context, batch types.Batch) (*Result, error) {
	actions, err := s.buildActions(batch.Transfers)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("batch %s has no transfers", batch.UUID)
	}

	total, err := batch.GetTotalNano()
	if err != nil {
		return nil, err
	}

	queryID, err := s.queryIDs.Next(ctx)
	if err != nil {
		return nil, err
	}

	value := tlb.FromNanoTON(new(big.Int).Add(total, s.config.FeeReserve.Nano()))
	tree := highload.Pack(actions, value, queryID)

	msg, err := tree.Message(s.config.Wallet)
	if err != nil {
		return nil, fmt.Errorf("couldn't build internal transfer: %w", err)
	}

	env, err := s.envelope(msg, highload.ModeForValue(value), queryID)
	if err != nil {
		return nil, err
	}

	metrics.BatchDepth.Observe(float64(tree.Depth()))

	return s.dispatch(ctx, env, &types.MessageRecord{
		BatchUUID:  batch.UUID,
		RequestIDs: batch.RequestIDs(),
		Actions:    tree.Total(),
	})
}

// SendMessage signs and submits one prebuilt internal message.
func (s *Service) SendMessage(ctx context.Context, msg *cell.Cell, mode uint8) (
	*Result, error) {

	queryID, err := s.queryIDs.Next(ctx)
	if err != nil {
		return nil, err
	}

	env, err := s.envelope(msg, mode, queryID)
	if err != nil {
		return nil, err
	}

	return s.dispatch(ctx, env, &types.MessageRecord{
		BatchUUID:  uuid.New(),
		RequestIDs: []string{},
		Actions:    1,
	})
}

func (s *Service) envelope(msg *cell.Cell, mode uint8, queryID highload.QueryID) (
	*highload.Envelope, error) {

	createdAt := s.now().Add(-s.config.CreatedAtLag).Unix()

	timeout, err := highload.TimeoutSeconds(s.config.Timeout)
	if err != nil {
		return nil, err
	}

	env, err := highload.BuildEnvelope(s.config.Key, &highload.EnvelopeParams{
		SubwalletID: s.config.SubwalletID,
		Message:     msg,
		Mode:        mode,
		QueryID:     queryID,
		CreatedAt:   createdAt,
		Timeout:     timeout,
		Wallet:      s.config.Wallet,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't build external message: %w", err)
	}

	return env, nil
}

// dispatch fills the envelope fields of record, persists it and submits env.
func (s *Service) dispatch(ctx context.Context, env *highload.Envelope,
	record *types.MessageRecord) (*Result, error) {

	record.Hash = env.HashHex()
	record.BodyUUID = env.BodyUUID()
	record.WalletHash = s.config.WalletHash
	record.QueryID = int64(env.QueryID.Uint64())
	record.Status = types.StatusPending
	record.CreatedAt = env.CreatedAt
	record.ExpiresAt = env.ExpiresAt

	log := s.log.With("hash", record.Hash, "query_id", env.QueryID.String())

	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.config.DBTimeout)
	err := s.repo.PersistMessage(ctxWithTimeout, record)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("couldn't persist message: %w", err)
	}

	metrics.LastQueryID.Set(float64(env.QueryID.Uint64()))

	result := &Result{
		Hash:    record.Hash,
		QueryID: env.QueryID,
		Actions: record.Actions,
	}

	if err := s.submitter.Submit(ctx, env); err != nil {
		log.Error("submission failed", "error", err)
		metrics.MessagesSent.WithLabelValues(s.submitter.Name(), "error").Inc()

		result.Status = types.StatusFailed
		s.setStatus(ctx, record.Hash, types.StatusFailed, "", err.Error())

		return result, fmt.Errorf("couldn't submit message: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(s.submitter.Name(), "ok").Inc()
	metrics.ActionsSent.Add(float64(record.Actions))

	result.Status = types.StatusSubmitted
	s.setStatus(ctx, record.Hash, types.StatusSubmitted, "", "")

	if s.tracker != nil {
		s.startTracking(record.Hash)
	}

	return result, nil
}

// track waits for the trace of a message and stores its final status. A
// message that never shows up is left for the expiry check.
func (s *Service) track(ctx context.Context, hash string) {
	outcome, detail := s.tracker.Track(ctx, hash)

	var status types.MessageStatus
	switch outcome {
	case tonapi.OutcomeSuccess:
		status = types.StatusSuccess
	case tonapi.OutcomeAborted:
		status = types.StatusAborted
	default:
		s.log.Info("message outcome is not known", "hash", hash,
			"outcome", outcome, "detail", detail)
		return
	}

	metrics.MessageOutcomes.WithLabelValues(string(status)).Inc()

	errMsg := ""
	if status == types.StatusAborted {
		errMsg = "transaction failed or bounced"
	}

	s.setStatus(ctx, hash, status, detail, errMsg)
}

func (s *Service) setStatus(ctx context.Context, hash string,
	status types.MessageStatus, txHash, errMsg string) {

	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.config.DBTimeout)
	defer cancel()

	err := s.repo.UpdateMessageStatus(ctxWithTimeout, hash, status, txHash, errMsg)
	if err != nil {
		s.log.Error("couldn't update message status",
			"hash", hash, "status", status, "error", err)
	}
}

// buildActions turns transfers into wallet actions. A jetton transfer is
// sent to the jetton wallet with Amount attached for the fees, the excess
// comes back to the highload wallet.
func (s *Service) buildActions(transfers []types.Transfer) ([]highload.Action, error) {
	actions := make([]highload.Action, 0, len(transfers))

	for _, transfer := range transfers {
		to, err := address.ParseAddr(transfer.Wallet)
		if err != nil {
			return nil, fmt.Errorf("invalid wallet %q: %w", transfer.Wallet, err)
		}

		amount, err := transfer.Coins()
		if err != nil {
			return nil, err
		}

		var action highload.Action
		if transfer.Jetton == nil {
			action, err = highload.NewTransferAction(TransferMode, to, amount,
				transfer.Comment)
		} else {
			action, err = s.jettonAction(to, amount, transfer.Jetton)
		}
		if err != nil {
			return nil, err
		}

		actions = append(actions, action)
	}

	return actions, nil
}

func (s *Service) jettonAction(to *address.Address, amount tlb.Coins,
	jetton *types.JettonTransfer) (highload.Action, error) {

	jettonWallet, err := address.ParseAddr(jetton.JettonWallet)
	if err != nil {
		return highload.Action{}, fmt.Errorf("invalid jetton wallet %q: %w",
			jetton.JettonWallet, err)
	}

	units, err := jetton.Units()
	if err != nil {
		return highload.Action{}, err
	}

	forward, err := jetton.ForwardNano()
	if err != nil {
		return highload.Action{}, err
	}

	return highload.NewJettonTransferAction(TransferMode, &highload.JettonTransfer{
		JettonWallet:     jettonWallet,
		Destination:      to,
		ResponseAddress:  s.config.Wallet,
		Amount:           units,
		TONAmount:        amount,
		ForwardTONAmount: forward,
	})
}
