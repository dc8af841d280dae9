package types

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
)

type Transfer struct {
	RequestID string `json:"-"`
	Wallet    string `json:"wallet"`
	// Amount in TON as a decimal string, e.g. "0.05". For a jetton transfer
	// it's the TON attached to the jetton wallet to pay the fees.
	Amount  string `json:"amount"`
	Comment string `json:"comment"`
	// Jetton turns the transfer into a jetton transfer to Wallet.
	Jetton *JettonTransfer `json:"jetton,omitempty"`
}

type JettonTransfer struct {
	// JettonWallet is the jetton wallet owned by the highload wallet.
	JettonWallet string `json:"jetton_wallet"`
	// Amount in indivisible jetton units.
	Amount string `json:"amount"`
	// ForwardAmount in TON sent along with the transfer notification.
	ForwardAmount string `json:"forward_amount,omitempty"`
}

func (j *JettonTransfer) Units() (*big.Int, error) {
	units, ok := new(big.Int).SetString(j.Amount, 10)
	if !ok || units.Sign() <= 0 {
		return nil, fmt.Errorf("invalid jetton amount %q", j.Amount)
	}

	return units, nil
}

// ForwardNano returns nil when no forward amount is set.
func (j *JettonTransfer) ForwardNano() (*big.Int, error) {
	if j.ForwardAmount == "" {
		return nil, nil
	}

	coins, err := tlb.FromTON(j.ForwardAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid forward amount %q: %w", j.ForwardAmount, err)
	}

	return coins.Nano(), nil
}

func (t Transfer) Coins() (tlb.Coins, error) {
	coins, err := tlb.FromTON(t.Amount)
	if err != nil {
		return tlb.Coins{}, fmt.Errorf("invalid amount %q: %w", t.Amount, err)
	}

	return coins, nil
}

// SendRequest is the payload accepted by the API and carried by the queue.
type SendRequest struct {
	RequestID string     `json:"request_id"`
	Transfers []Transfer `json:"transfers"`
}

type Batch struct {
	UUID      uuid.UUID
	Transfers []Transfer
}

// RequestIDs returns the unique request ids of the batch in arrival order.
func (b *Batch) RequestIDs() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)

	for _, tr := range b.Transfers {
		if _, ok := seen[tr.RequestID]; ok {
			continue
		}
		seen[tr.RequestID] = struct{}{}
		ids = append(ids, tr.RequestID)
	}

	return ids
}

func (b *Batch) GetTotalNano() (*big.Int, error) {
	total := big.NewInt(0)

	for _, tr := range b.Transfers {
		coins, err := tr.Coins()
		if err != nil {
			return nil, err
		}
		total.Add(total, coins.Nano())
	}

	return total, nil
}

// Validate checks every transfer of the request, so a broken one never
// reaches the wallet.
func (r *SendRequest) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("request id is required")
	}
	if len(r.Transfers) == 0 {
		return fmt.Errorf("no transfers")
	}

	for i, transfer := range r.Transfers {
		if _, err := address.ParseAddr(transfer.Wallet); err != nil {
			return fmt.Errorf("transfer %d: invalid wallet %q: %w", i, transfer.Wallet, err)
		}

		coins, err := transfer.Coins()
		if err != nil {
			return fmt.Errorf("transfer %d: %w", i, err)
		}
		if coins.Nano().Sign() <= 0 {
			return fmt.Errorf("transfer %d: amount must be positive", i)
		}

		if transfer.Jetton == nil {
			continue
		}

		if _, err := address.ParseAddr(transfer.Jetton.JettonWallet); err != nil {
			return fmt.Errorf("transfer %d: invalid jetton wallet %q: %w",
				i, transfer.Jetton.JettonWallet, err)
		}
		if _, err := transfer.Jetton.Units(); err != nil {
			return fmt.Errorf("transfer %d: %w", i, err)
		}
		if _, err := transfer.Jetton.ForwardNano(); err != nil {
			return fmt.Errorf("transfer %d: %w", i, err)
		}
	}

	return nil
}
