package types

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"   // built and persisted, not yet submitted
	StatusSubmitted MessageStatus = "submitted" // accepted by the transport
	StatusConfirmed MessageStatus = "confirmed" // seen on chain by the scanner
	StatusSuccess   MessageStatus = "success"
	StatusAborted   MessageStatus = "aborted"
	StatusFailed    MessageStatus = "failed"  // transport rejected the message
	StatusExpired   MessageStatus = "expired" // timeout elapsed without a transaction
)

// IsFinal reports whether the status can no longer change.
func (s MessageStatus) IsFinal() bool {
	switch s {
	case StatusSuccess, StatusAborted, StatusFailed, StatusExpired:
		return true
	}

	return false
}

// MessageRecord tracks one external message sent from the highload wallet.
type MessageRecord struct {
	Hash       string        `db:"hash" json:"hash"` // hex hash of the external message
	BodyUUID   uuid.UUID     `db:"body_uuid" json:"body_uuid"`
	BatchUUID  uuid.UUID     `db:"batch_uuid" json:"batch_uuid"`
	WalletHash string        `db:"wallet_hash" json:"wallet_hash"`
	QueryID    int64         `db:"query_id" json:"query_id"`
	RequestIDs []string      `db:"request_ids" json:"request_ids"`
	Actions    int           `db:"actions" json:"actions"`
	Status     MessageStatus `db:"status" json:"status"`
	TxHash     string        `db:"tx_hash" json:"tx_hash,omitempty"`
	Error      string        `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time     `db:"expires_at" json:"expires_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}
