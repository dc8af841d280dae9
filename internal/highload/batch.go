package highload

import (
	"github.com/openbuilders/highload-sender/internal/errors"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// MaxActions is the number of actions a single out list can hold.
const MaxActions = 254

// BatchInput is what an internal transfer carries: either raw actions that
// still have to be serialized or an out list cell built elsewhere.
type BatchInput interface {
	isBatchInput()
}

type RawActions []Action

// PrebuiltActions is an already serialized OutList.
type PrebuiltActions struct {
	Cell *cell.Cell
}

func (RawActions) isBatchInput()      {}
func (PrebuiltActions) isBatchInput() {}

// InternalTransferBody builds the body of an internal_transfer message. Raw
// input longer than MaxActions is rejected, use Pack to nest it.
func InternalTransferBody(input BatchInput, queryID QueryID) (*cell.Cell, error) {
	var actions *cell.Cell

	switch in := input.(type) {
	case PrebuiltActions:
		if in.Cell == nil {
			return nil, errors.New(CodeEncoding, "nil prebuilt out list")
		}
		actions = in.Cell
	case RawActions:
		if len(in) > MaxActions {
			return nil, errors.New(CodeLimitExceeded,
				"max allowed action count is %d, got %d: use Pack instead",
				MaxActions, len(in))
		}

		var err error
		actions, err = storeOutList(in)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New(CodeEncoding, "unsupported batch input %T", input)
	}

	b := cell.BeginCell()
	if err := b.StoreUInt(OpInternalTransfer, 32); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store op")
	}
	if err := b.StoreUInt(queryID.Uint64(), 64); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store query id")
	}
	if err := b.StoreRef(actions); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store actions")
	}

	return b.EndCell(), nil
}

// storeOutList serializes actions as out_list$_ prev:^(OutList n) action:OutAction,
// the last action ends up in the root cell.
func storeOutList(actions []Action) (*cell.Cell, error) {
	list := cell.BeginCell().EndCell()

	for i, a := range actions {
		if a.OutMsg == nil {
			return nil, errors.New(CodeEncoding, "action %d has no message", i)
		}

		b := cell.BeginCell()
		if err := b.StoreRef(list); err != nil {
			return nil, errors.Wrap(CodeEncoding, err, "store out list")
		}
		if err := b.StoreUInt(OpSendMsg, 32); err != nil {
			return nil, errors.Wrap(CodeEncoding, err, "store action tag")
		}
		if err := b.StoreUInt(uint64(a.Mode), 8); err != nil {
			return nil, errors.Wrap(CodeEncoding, err, "store action mode")
		}
		if err := b.StoreRef(a.OutMsg); err != nil {
			return nil, errors.Wrap(CodeEncoding, err, "store action message")
		}

		list = b.EndCell()
	}

	return list, nil
}

// ModeForValue is the send mode of a message carrying a batch: gas is paid
// separately when the batch is funded explicitly, otherwise the remaining
// balance is carried along.
func ModeForValue(value tlb.Coins) uint8 {
	if value.Nano().Sign() > 0 {
		return uint8(wallet.PayGasSeparately)
	}

	return uint8(wallet.CarryAllRemainingBalance)
}

// Batch is a node of the action tree. A node holds at most MaxActions
// entries, the last one being the forward to the next node when there is one.
type Batch struct {
	QueryID QueryID
	Value   tlb.Coins
	Actions []Action

	Forward     *Batch
	ForwardMode uint8
}

// Pack splits actions into a chain of batches. Every node takes the first
// MaxActions-1 actions and forwards the rest to itself in a nested internal
// transfer funded with value.
func Pack(actions []Action, value tlb.Coins, queryID QueryID) *Batch {
	batch := &Batch{
		QueryID: queryID,
		Value:   value,
	}

	if len(actions) <= MaxActions {
		batch.Actions = actions
		return batch
	}

	batch.Actions = actions[:MaxActions-1]
	batch.Forward = Pack(actions[MaxActions-1:], value, queryID)
	batch.ForwardMode = ModeForValue(value)

	return batch
}

// Len returns the number of out list entries of this node.
func (b *Batch) Len() int {
	if b.Forward != nil {
		return len(b.Actions) + 1
	}

	return len(b.Actions)
}

// Total returns the number of actions in the whole tree, forwards excluded.
func (b *Batch) Total() int {
	total := 0
	for n := b; n != nil; n = n.Forward {
		total += len(n.Actions)
	}

	return total
}

func (b *Batch) Depth() int {
	depth := 0
	for n := b; n != nil; n = n.Forward {
		depth++
	}

	return depth
}

// Flatten returns the actions of the tree in execution order.
func (b *Batch) Flatten() []Action {
	actions := make([]Action, 0, b.Total())
	for n := b; n != nil; n = n.Forward {
		actions = append(actions, n.Actions...)
	}

	return actions
}

// Body serializes the node and everything it forwards to as an
// internal_transfer body. self is the wallet receiving the forwards.
func (b *Batch) Body(self *address.Address) (*cell.Cell, error) {
	entries := b.Actions

	if b.Forward != nil {
		forward, err := b.Forward.Message(self)
		if err != nil {
			return nil, err
		}

		entries = make([]Action, 0, b.Len())
		entries = append(entries, b.Actions...)
		entries = append(entries, Action{Mode: b.ForwardMode, OutMsg: forward})
	}

	return InternalTransferBody(RawActions(entries), b.QueryID)
}

// Message wraps Body into an internal message from the wallet to itself.
func (b *Batch) Message(self *address.Address) (*cell.Cell, error) {
	if self == nil {
		return nil, errors.New(CodeEncoding, "nil wallet address")
	}

	body, err := b.Body(self)
	if err != nil {
		return nil, err
	}

	msg, err := tlb.ToCell(&tlb.InternalMessage{
		IHRDisabled: true,
		Bounce:      true,
		DstAddr:     self,
		Amount:      b.Value,
		Body:        body,
	})
	if err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "serialize internal transfer")
	}

	return msg, nil
}
