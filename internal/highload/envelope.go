package highload

import (
	"crypto/ed25519"
	"encoding/hex"
	"math"
	"time"

	"github.com/openbuilders/highload-sender/internal/errors"

	"github.com/google/uuid"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	SUBWALLET_ID_SIZE = 32
	MODE_SIZE         = 8
	TIMESTAMP_SIZE    = 64
	TIMEOUT_SIZE      = 22
	SIGNATURE_SIZE    = 512

	MAX_TIMEOUT = 1<<TIMEOUT_SIZE - 1
)

// TimeoutSeconds converts d into the timeout field. d must be a positive
// number of seconds that fits in TIMEOUT_SIZE bits.
func TimeoutSeconds(d time.Duration) (uint32, error) {
	if d < time.Second || d%time.Second != 0 {
		return 0, errors.New(CodeEncoding, "timeout %s is not a positive number of seconds", d)
	}

	seconds := uint64(d / time.Second)
	if seconds > MAX_TIMEOUT {
		return 0, errors.New(CodeEncoding,
			"timeout %s does not fit in %d bits", d, TIMEOUT_SIZE)
	}

	return uint32(seconds), nil
}

// SubwalletID checks that id fits in SUBWALLET_ID_SIZE bits.
func SubwalletID(id uint64) (uint32, error) {
	if id > math.MaxUint32 {
		return 0, errors.New(CodeEncoding,
			"subwallet id %d does not fit in %d bits", id, SUBWALLET_ID_SIZE)
	}

	return uint32(id), nil
}

// EnvelopeParams are the fields of the signed part of an external message.
type EnvelopeParams struct {
	SubwalletID uint32
	// Message is a MessageRelaxed cell, usually Batch.Message.
	Message   *cell.Cell
	Mode      uint8
	QueryID   QueryID
	CreatedAt int64  // unix seconds
	Timeout   uint32 // seconds, 22 bits
	Wallet    *address.Address
}

// Envelope is a signed external message ready to be submitted.
type Envelope struct {
	Cell *cell.Cell
	Body *cell.Cell // signature and ^inner
	BOC  []byte
	// Hash of the whole external message, used to look the message up later.
	Hash []byte
	// BodyHash is the hash of the signed body, which is what the transaction
	// scanner sees in the in_msg of the wallet.
	BodyHash  []byte
	QueryID   QueryID
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (e *Envelope) HashHex() string {
	return hex.EncodeToString(e.Hash)
}

// BodyUUID is derived from the first 16 bytes of the body hash.
func (e *Envelope) BodyUUID() uuid.UUID {
	u, _ := uuid.FromBytes(e.BodyHash[:16])
	return u
}

// BuildEnvelope signs the inner payload with key and wraps it into
// an ext_in_msg_info addressed to the wallet. Nothing is sent.
func BuildEnvelope(key ed25519.PrivateKey, p *EnvelopeParams) (*Envelope, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New(CodeSignature,
			"private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	inner, err := p.innerCell()
	if err != nil {
		return nil, err
	}

	signature := ed25519.Sign(key, inner.Hash())

	body := cell.BeginCell()
	if err := body.StoreSlice(signature, SIGNATURE_SIZE); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store signature")
	}
	if err := body.StoreRef(inner); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store inner payload")
	}
	bodyCell := body.EndCell()

	msg := cell.BeginCell()
	if err := msg.StoreUInt(0b10, 2); err != nil { // ext_in_msg_info$10
		return nil, errors.Wrap(CodeEncoding, err, "store message kind")
	}
	if err := msg.StoreUInt(0, 2); err != nil { // src -> addr_none
		return nil, errors.Wrap(CodeEncoding, err, "store source")
	}
	if err := msg.StoreAddr(p.Wallet); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store destination")
	}
	if err := msg.StoreCoins(0); err != nil { // import fee
		return nil, errors.Wrap(CodeEncoding, err, "store import fee")
	}
	if err := msg.StoreBoolBit(false); err != nil { // no state init
		return nil, errors.Wrap(CodeEncoding, err, "store state init flag")
	}
	if err := msg.StoreBoolBit(true); err != nil { // body as a reference
		return nil, errors.Wrap(CodeEncoding, err, "store body flag")
	}
	if err := msg.StoreRef(bodyCell); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store body")
	}
	ext := msg.EndCell()

	createdAt := time.Unix(p.CreatedAt, 0)

	return &Envelope{
		Cell:      ext,
		Body:      bodyCell,
		BOC:       ext.ToBOCWithFlags(false),
		Hash:      ext.Hash(),
		BodyHash:  bodyCell.Hash(),
		QueryID:   p.QueryID,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(time.Duration(p.Timeout) * time.Second),
	}, nil
}

func (p *EnvelopeParams) validate() error {
	switch {
	case p.Message == nil:
		return errors.New(CodeEncoding, "message is required")
	case p.Wallet == nil:
		return errors.New(CodeEncoding, "wallet address is required")
	case p.CreatedAt < 0:
		return errors.New(CodeEncoding, "created at %d is negative", p.CreatedAt)
	case p.Timeout > MAX_TIMEOUT:
		return errors.New(CodeEncoding,
			"timeout %d does not fit in %d bits", p.Timeout, TIMEOUT_SIZE)
	case p.QueryID.Uint64() > MAX_QUERY_ID:
		return errors.New(CodeEncoding,
			"query id %d does not fit in %d bits", p.QueryID.Uint64(), QUERY_ID_SIZE)
	}

	return nil
}

// innerCell stores subwallet_id:32 ^message mode:8 query_id:23 created_at:64 timeout:22.
func (p *EnvelopeParams) innerCell() (*cell.Cell, error) {
	b := cell.BeginCell()

	if err := b.StoreUInt(uint64(p.SubwalletID), SUBWALLET_ID_SIZE); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store subwallet id")
	}
	if err := b.StoreRef(p.Message); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store message")
	}
	if err := b.StoreUInt(uint64(p.Mode), MODE_SIZE); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store mode")
	}
	if err := b.StoreUInt(p.QueryID.Uint64(), QUERY_ID_SIZE); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store query id")
	}
	if err := b.StoreUInt(uint64(p.CreatedAt), TIMESTAMP_SIZE); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store created at")
	}
	if err := b.StoreUInt(uint64(p.Timeout), TIMEOUT_SIZE); err != nil {
		return nil, errors.Wrap(CodeEncoding, err, "store timeout")
	}

	return b.EndCell(), nil
}
