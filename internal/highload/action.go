package highload

import (
	"fmt"
	"math/big"

	"github.com/openbuilders/highload-sender/internal/errors"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	// action_send_msg#0ec3c86d mode:(## 8) out_msg:^(MessageRelaxed Any) = OutAction;
	OpSendMsg = 0x0ec3c86d
	// internal_transfer#ae42e5a4 query_id:uint64 actions:^(OutList n)
	OpInternalTransfer = 0xae42e5a4
	OpJettonTransfer   = 0x0f8a7ea5
)

// Action is a single outgoing message the wallet contract will send.
type Action struct {
	Mode   uint8
	OutMsg *cell.Cell // MessageRelaxed
}

// NewAction serializes msg and returns it as an action with the given mode.
func NewAction(mode uint8, msg *tlb.InternalMessage) (Action, error) {
	if msg == nil || msg.DstAddr == nil {
		return Action{}, errors.New(CodeEncoding, "internal message without destination")
	}

	c, err := tlb.ToCell(msg)
	if err != nil {
		return Action{}, errors.Wrap(CodeEncoding, err, "serialize internal message")
	}

	return Action{Mode: mode, OutMsg: c}, nil
}

// NewTransferAction builds a plain TON transfer with an optional text comment.
// Bounce follows the flag of the user friendly address.
func NewTransferAction(mode uint8, to *address.Address, amount tlb.Coins,
	comment string) (Action, error) {

	var body *cell.Cell
	if comment != "" {
		var err error
		body, err = wallet.CreateCommentCell(comment)
		if err != nil {
			return Action{}, fmt.Errorf("couldn't create comment: %w", err)
		}
	}

	return NewAction(mode, &tlb.InternalMessage{
		IHRDisabled: true, // hyper routing is not supported
		Bounce:      to.IsBounceable(),
		DstAddr:     to,
		Amount:      amount,
		Body:        body,
	})
}

// JettonTransfer describes a transfer of jettons out of the wallet's jetton
// wallet.
type JettonTransfer struct {
	JettonWallet     *address.Address // jetton wallet owned by the highload wallet
	Destination      *address.Address
	ResponseAddress  *address.Address // where excess TON is returned
	Amount           *big.Int         // jetton units
	TONAmount        tlb.Coins        // attached to cover the fees
	ForwardTONAmount *big.Int
}

// JettonTransferBody builds the transfer#0f8a7ea5 body.
func JettonTransferBody(t *JettonTransfer) (*cell.Cell, error) {
	forward := t.ForwardTONAmount
	if forward == nil {
		forward = big.NewInt(1)
	}

	b := cell.BeginCell()
	if err := b.StoreUInt(OpJettonTransfer, 32); err != nil {
		return nil, err
	}
	if err := b.StoreUInt(0, 64); err != nil {
		return nil, err
	}
	if err := b.StoreBigCoins(t.Amount); err != nil {
		return nil, fmt.Errorf("jetton amount: %w", err)
	}
	if err := b.StoreAddr(t.Destination); err != nil {
		return nil, fmt.Errorf("jetton destination: %w", err)
	}
	if err := b.StoreAddr(t.ResponseAddress); err != nil {
		return nil, fmt.Errorf("jetton response address: %w", err)
	}
	if err := b.StoreBoolBit(false); err != nil { // no custom payload
		return nil, err
	}
	if err := b.StoreBigCoins(forward); err != nil {
		return nil, fmt.Errorf("forward amount: %w", err)
	}
	if err := b.StoreBoolBit(false); err != nil { // empty forward payload
		return nil, err
	}

	return b.EndCell(), nil
}

// NewJettonTransferAction wraps a jetton transfer into an action sent to the
// jetton wallet.
func NewJettonTransferAction(mode uint8, t *JettonTransfer) (Action, error) {
	if t.Amount == nil || t.Destination == nil || t.JettonWallet == nil {
		return Action{}, errors.New(CodeEncoding, "incomplete jetton transfer")
	}

	body, err := JettonTransferBody(t)
	if err != nil {
		return Action{}, errors.Wrap(CodeEncoding, err, "jetton transfer body")
	}

	return NewAction(mode, &tlb.InternalMessage{
		IHRDisabled: true,
		Bounce:      true,
		DstAddr:     t.JettonWallet,
		Amount:      t.TONAmount,
		Body:        body,
	})
}
