package chain

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/big"
	"time"

	"github.com/openbuilders/highload-sender/internal/highload"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/ton"
)

// MethodRunner is the part of the lite client API the getters need.
type MethodRunner interface {
	CurrentMasterchainInfo(ctx context.Context) (*ton.BlockIDExt, error)
	RunGetMethod(ctx context.Context, block *ton.BlockIDExt, addr *address.Address,
		method string, params ...any) (*ton.ExecutionResult, error)
}

// Getters runs the get methods of a deployed highload wallet v3.
type Getters struct {
	client MethodRunner
	wallet *address.Address
}

func NewGetters(client MethodRunner, wallet *address.Address) *Getters {
	return &Getters{client: client, wallet: wallet}
}

func (g *Getters) runInt(ctx context.Context, method string, params ...any) (
	*big.Int, error) {

	block, err := g.client.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't fetch master chain info: %w", err)
	}

	res, err := g.client.RunGetMethod(ctx, block, g.wallet, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	value, err := res.Int(0)
	if err != nil {
		return nil, fmt.Errorf("%s result: %w", method, err)
	}

	return value, nil
}

func (g *Getters) PublicKey(ctx context.Context) (ed25519.PublicKey, error) {
	value, err := g.runInt(ctx, "get_public_key")
	if err != nil {
		return nil, err
	}

	return value.FillBytes(make([]byte, ed25519.PublicKeySize)), nil
}

func (g *Getters) SubwalletID(ctx context.Context) (uint32, error) {
	value, err := g.runInt(ctx, "get_subwallet_id")
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("get_subwallet_id returned %s", value)
	}

	return highload.SubwalletID(value.Uint64())
}

// Timeout returns the message timeout configured in the contract.
func (g *Getters) Timeout(ctx context.Context) (uint32, error) {
	value, err := g.runInt(ctx, "get_timeout")
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() || value.Uint64() > highload.MAX_TIMEOUT {
		return 0, fmt.Errorf("get_timeout returned %s", value)
	}

	return uint32(value.Uint64()), nil
}

func (g *Getters) LastCleanTime(ctx context.Context) (time.Time, error) {
	value, err := g.runInt(ctx, "get_last_clean_time")
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(value.Int64(), 0), nil
}

// IsProcessed asks the contract whether the slot of queryID is marked in its
// processed bitmaps. With needClean the contract reports a slot as free once
// it is old enough to be cleaned.
func (g *Getters) IsProcessed(ctx context.Context, queryID highload.QueryID,
	needClean bool) (bool, error) {

	clean := int64(0)
	if needClean {
		clean = -1
	}

	value, err := g.runInt(ctx, "processed?",
		new(big.Int).SetUint64(queryID.Uint64()), big.NewInt(clean))
	if err != nil {
		return false, err
	}

	return value.Sign() != 0, nil
}
