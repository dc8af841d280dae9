package highload

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

var (
	testWallet    = address.MustParseAddr("0QB6ZOQd5htYtmB1qxWkd3c1iBoowxnMR5Rt61EscxJnIiou")
	testRecipient = address.MustParseAddr("0QAFyfwn13L8oi30vdWBV41zFaHzCa6mJpVEjCeaDUAqmGcO")
)

func makeActions(t *testing.T, n int) []Action {
	t.Helper()

	actions := make([]Action, n)
	for i := range actions {
		a, err := NewTransferAction(3, testRecipient, tlb.MustFromTON("0.01"), fmt.Sprintf("#%d", i))
		require.NoError(t, err)
		actions[i] = a
	}

	return actions
}

type outAction struct {
	mode uint8
	msg  *cell.Cell
}

// decodeOutList returns the entries of an OutList in execution order.
func decodeOutList(t *testing.T, list *cell.Cell) []outAction {
	t.Helper()

	var reversed []outAction
	for {
		s := list.BeginParse()
		if s.BitsLeft() == 0 && s.RefsNum() == 0 {
			break
		}

		prev, err := s.LoadRefCell()
		require.NoError(t, err)

		tag, err := s.LoadUInt(32)
		require.NoError(t, err)
		require.Equal(t, uint64(OpSendMsg), tag)

		mode, err := s.LoadUInt(8)
		require.NoError(t, err)

		msg, err := s.LoadRefCell()
		require.NoError(t, err)

		reversed = append(reversed, outAction{mode: uint8(mode), msg: msg})
		list = prev
	}

	entries := make([]outAction, len(reversed))
	for i, e := range reversed {
		entries[len(reversed)-1-i] = e
	}

	return entries
}

// decodeTransferBody checks the internal_transfer header and returns its entries.
func decodeTransferBody(t *testing.T, body *cell.Cell, queryID QueryID) []outAction {
	t.Helper()

	s := body.BeginParse()

	op, err := s.LoadUInt(32)
	require.NoError(t, err)
	require.Equal(t, uint64(OpInternalTransfer), op)

	qid, err := s.LoadUInt(64)
	require.NoError(t, err)
	require.Equal(t, queryID.Uint64(), qid)

	list, err := s.LoadRefCell()
	require.NoError(t, err)

	return decodeOutList(t, list)
}

func expectedDepth(n int) int {
	depth := 1
	for rest := n; rest > MaxActions; rest -= MaxActions - 1 {
		depth++
	}

	return depth
}

func TestPack_Properties(t *testing.T) {
	qid, err := FromShiftAndBitNumber(3, 17)
	require.NoError(t, err)

	for _, n := range []int{0, 1, 2, 253, 254, 255, 506, 507, 508, 1000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			actions := makeActions(t, n)
			batch := Pack(actions, tlb.ZeroCoins, qid)

			require.Equal(t, n, batch.Total())
			require.Equal(t, expectedDepth(n), batch.Depth())

			flat := batch.Flatten()
			require.Len(t, flat, n)
			for i := range actions {
				require.Equal(t, actions[i].OutMsg.Hash(), flat[i].OutMsg.Hash(), "action %d out of order", i)
			}

			for node := batch; node != nil; node = node.Forward {
				require.LessOrEqual(t, node.Len(), MaxActions)
				require.Equal(t, qid, node.QueryID)
				if node.Forward != nil {
					require.Equal(t, MaxActions, node.Len())
				}
			}
		})
	}
}

func TestPack_Boundaries(t *testing.T) {
	qid := QueryID{}

	single := Pack(makeActions(t, 254), tlb.ZeroCoins, qid)
	require.Nil(t, single.Forward)
	require.Equal(t, 254, single.Len())

	nested := Pack(makeActions(t, 255), tlb.ZeroCoins, qid)
	require.NotNil(t, nested.Forward)
	require.Len(t, nested.Actions, 253)
	require.Equal(t, 254, nested.Len())
	require.Len(t, nested.Forward.Actions, 2)
	require.Nil(t, nested.Forward.Forward)
}

func TestPack_ForwardMode(t *testing.T) {
	qid := QueryID{}

	drained := Pack(makeActions(t, 500), tlb.ZeroCoins, qid)
	require.Len(t, drained.Actions, 253)
	require.Equal(t, uint8(128), drained.ForwardMode)
	require.Len(t, drained.Forward.Actions, 247)

	funded := Pack(makeActions(t, 500), tlb.MustFromTON("1"), qid)
	require.Equal(t, uint8(1), funded.ForwardMode)
}

func TestPack_Serialization(t *testing.T) {
	qid, err := FromShiftAndBitNumber(1, 5)
	require.NoError(t, err)

	actions := makeActions(t, 500)
	batch := Pack(actions, tlb.ZeroCoins, qid)

	body, err := batch.Body(testWallet)
	require.NoError(t, err)

	root := decodeTransferBody(t, body, qid)
	require.Len(t, root, 254)
	for i := 0; i < 253; i++ {
		require.Equal(t, actions[i].OutMsg.Hash(), root[i].msg.Hash())
		require.Equal(t, uint8(3), root[i].mode)
	}

	forward := root[253]
	require.Equal(t, uint8(128), forward.mode)

	var msg tlb.InternalMessage
	require.NoError(t, tlb.LoadFromCell(&msg, forward.msg.BeginParse()))
	require.Equal(t, testWallet.Data(), msg.DstAddr.Data())

	child := decodeTransferBody(t, msg.Body, qid)
	require.Len(t, child, 247)
	for i, e := range child {
		require.Equal(t, actions[253+i].OutMsg.Hash(), e.msg.Hash())
	}
}

func TestPack_Empty(t *testing.T) {
	batch := Pack(nil, tlb.ZeroCoins, QueryID{})
	require.Equal(t, 0, batch.Len())

	body, err := batch.Body(testWallet)
	require.NoError(t, err)
	require.Empty(t, decodeTransferBody(t, body, QueryID{}))
}

func TestInternalTransferBody_Limit(t *testing.T) {
	_, err := InternalTransferBody(RawActions(makeActions(t, 255)), QueryID{})
	require.True(t, errors.Is(err, ErrLimitExceeded), "got %v", err)

	body, err := InternalTransferBody(RawActions(makeActions(t, 254)), QueryID{})
	require.NoError(t, err)
	require.Len(t, decodeTransferBody(t, body, QueryID{}), 254)
}

func TestInternalTransferBody_Prebuilt(t *testing.T) {
	list, err := storeOutList(makeActions(t, 3))
	require.NoError(t, err)

	body, err := InternalTransferBody(PrebuiltActions{Cell: list}, QueryID{})
	require.NoError(t, err)
	require.Len(t, decodeTransferBody(t, body, QueryID{}), 3)

	_, err = InternalTransferBody(PrebuiltActions{}, QueryID{})
	require.True(t, errors.Is(err, ErrEncoding), "got %v", err)
}

func TestNewAction_Validation(t *testing.T) {
	_, err := NewAction(3, &tlb.InternalMessage{})
	require.True(t, errors.Is(err, ErrEncoding), "got %v", err)

	_, err = NewJettonTransferAction(3, &JettonTransfer{})
	require.True(t, errors.Is(err, ErrEncoding), "got %v", err)
}
