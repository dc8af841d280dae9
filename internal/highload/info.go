package highload

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// MsgInfo contains information from the body of an external message.
type MsgInfo struct {
	// UUID is based on the first 16 bytes of the hash of the message body.
	UUID        uuid.UUID
	Wallet      *address.Address // nil when only the body was parsed
	Signature   []byte
	PayloadHash []byte // hash of the signed inner payload
	SubwalletID uint32
	Message     *cell.Cell
	Mode        uint8
	QueryID     QueryID
	// Timestamp when the message was created.
	CreatedAt time.Time
	// Expiration of the message (CreatedAt + Timeout).
	ExpiresAt time.Time
	// Timeout of the message in seconds.
	Timeout uint64
}

// ParseEnvelope reads back an external message built by BuildEnvelope.
func ParseEnvelope(ext *cell.Cell) (*MsgInfo, error) {
	s := ext.BeginParse()

	kind, err := s.LoadUInt(2)
	if err != nil {
		return nil, fmt.Errorf("load message kind: %w", err)
	}
	if kind != 0b10 {
		return nil, fmt.Errorf("not an external in message: %b", kind)
	}

	if src, err := s.LoadUInt(2); err != nil || src != 0 {
		return nil, fmt.Errorf("unexpected source address")
	}

	wallet, err := s.LoadAddr()
	if err != nil {
		return nil, fmt.Errorf("load destination: %w", err)
	}

	if _, err = s.LoadCoins(); err != nil {
		return nil, fmt.Errorf("load import fee: %w", err)
	}

	hasStateInit, err := s.LoadBoolBit()
	if err != nil {
		return nil, err
	}
	if hasStateInit {
		return nil, fmt.Errorf("unexpected state init")
	}

	bodyIsRef, err := s.LoadBoolBit()
	if err != nil {
		return nil, err
	}
	if !bodyIsRef {
		return nil, fmt.Errorf("body is expected to be stored as a reference")
	}

	body, err := s.LoadRefCell()
	if err != nil {
		return nil, fmt.Errorf("load body: %w", err)
	}

	info, err := ParseExternalBody(body)
	if err != nil {
		return nil, err
	}
	info.Wallet = wallet

	return info, nil
}

// ParseExternalBody parses the signed body of a highload wallet external.
func ParseExternalBody(body *cell.Cell) (*MsgInfo, error) {
	if body == nil {
		return nil, fmt.Errorf("nil body for external message")
	}

	hash := body.Hash()
	u, err := uuid.FromBytes(hash[:16])
	if err != nil {
		return nil, err
	}

	var msg struct {
		Sign    []byte     `tlb:"bits 512"`
		Payload *cell.Cell `tlb:"^"`
	}
	err = tlb.LoadFromCell(&msg, body.BeginParse())
	if err != nil {
		return nil, err
	}

	var payload struct {
		SubwalletID uint32     `tlb:"## 32"`
		Msg         *cell.Cell `tlb:"^"`
		Mode        uint8      `tlb:"## 8"`
		QueryID     uint64     `tlb:"## 23"`
		CreatedAt   uint64     `tlb:"## 64"`
		Timeout     uint64     `tlb:"## 22"`
	}
	err = tlb.LoadFromCell(&payload, msg.Payload.BeginParse())
	if err != nil {
		return nil, err
	}

	queryID, err := FromInteger(payload.QueryID)
	if err != nil {
		return nil, err
	}

	return &MsgInfo{
		UUID:        u,
		Signature:   msg.Sign,
		PayloadHash: msg.Payload.Hash(),
		SubwalletID: payload.SubwalletID,
		Message:     payload.Msg,
		Mode:        payload.Mode,
		QueryID:     queryID,
		CreatedAt:   time.Unix(int64(payload.CreatedAt), 0),
		ExpiresAt:   time.Unix(int64(payload.CreatedAt+payload.Timeout), 0),
		Timeout:     payload.Timeout,
	}, nil
}
