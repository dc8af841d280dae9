package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openbuilders/highload-sender/internal/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DuplicateKeyValue string = "23505"
)

var (
	ErrDuplicateKeyValue = errors.New("duplicate key value")
	ErrNotFound          = errors.New("not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS wallet_state (
	wallet_hash   TEXT PRIMARY KEY,
	last_query_id BIGINT,
	last_lt       BIGINT NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS external_message (
	hash        TEXT PRIMARY KEY,
	body_uuid   UUID NOT NULL UNIQUE,
	batch_uuid  UUID NOT NULL,
	wallet_hash TEXT NOT NULL,
	query_id    BIGINT NOT NULL,
	request_ids TEXT[] NOT NULL DEFAULT '{}',
	actions     INTEGER NOT NULL,
	status      TEXT NOT NULL,
	tx_hash     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	notified    BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS external_message_status_idx
	ON external_message (status, expires_at);
`

const messageColumns = `hash, body_uuid, batch_uuid, wallet_hash, query_id,
	request_ids, actions, status, tx_hash, error, created_at, expires_at,
	updated_at`

// Migrate creates the tables used by the sender if they don't exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pg.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("couldn't apply schema: %w", err)
	}

	return nil
}

func (p *Postgres) LoadQueryID(ctx context.Context, walletHash string) (
	uint64, bool, error) {

	var queryID *int64
	err := p.pg.QueryRow(ctx,
		`SELECT last_query_id FROM wallet_state WHERE wallet_hash = $1`,
		walletHash,
	).Scan(&queryID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && queryID == nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("couldn't load query id: %w", err)
	}

	return uint64(*queryID), true, nil
}

func (p *Postgres) SaveQueryID(ctx context.Context, walletHash string,
	queryID uint64) error {

	_, err := p.pg.Exec(ctx, `
		INSERT INTO wallet_state (wallet_hash, last_query_id)
		VALUES ($1, $2)
		ON CONFLICT (wallet_hash) DO UPDATE
		SET last_query_id = EXCLUDED.last_query_id, updated_at = now()`,
		walletHash, int64(queryID),
	)
	if err != nil {
		return fmt.Errorf("couldn't save query id: %w", err)
	}

	return nil
}

func (p *Postgres) GetLastWalletLt(ctx context.Context, walletHash string) (
	uint64, error) {

	var lt int64
	err := p.pg.QueryRow(ctx,
		`SELECT last_lt FROM wallet_state WHERE wallet_hash = $1`,
		walletHash,
	).Scan(&lt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("couldn't get last lt: %w", err)
	}

	return uint64(lt), nil
}

func (p *Postgres) UpdateLastWalletLt(ctx context.Context, walletHash string,
	lt uint64) error {

	_, err := p.pg.Exec(ctx, `
		INSERT INTO wallet_state (wallet_hash, last_lt)
		VALUES ($1, $2)
		ON CONFLICT (wallet_hash) DO UPDATE
		SET last_lt = GREATEST(wallet_state.last_lt, EXCLUDED.last_lt),
			updated_at = now()`,
		walletHash, int64(lt),
	)
	if err != nil {
		return fmt.Errorf("couldn't update last lt: %w", err)
	}

	return nil
}

func (p *Postgres) PersistMessage(ctx context.Context,
	msg *types.MessageRecord) error {

	p.log.Debug("persisting message", "hash", msg.Hash, "query_id", msg.QueryID)

	_, err := p.pg.Exec(ctx, `
		INSERT INTO external_message (hash, body_uuid, batch_uuid, wallet_hash,
			query_id, request_ids, actions, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		msg.Hash, msg.BodyUUID, msg.BatchUUID, msg.WalletHash, msg.QueryID,
		msg.RequestIDs, msg.Actions, msg.Status, msg.CreatedAt, msg.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == DuplicateKeyValue {
			return ErrDuplicateKeyValue
		}
		return fmt.Errorf("couldn't persist message: %w", err)
	}

	return nil
}

// UpdateMessageStatus moves a message to a new status unless it has already
// reached a final one.
func (p *Postgres) UpdateMessageStatus(ctx context.Context, hash string,
	status types.MessageStatus, txHash, errMsg string) error {

	tag, err := p.pg.Exec(ctx, `
		UPDATE external_message
		SET status = $2,
			tx_hash = CASE WHEN $3::text = '' THEN tx_hash ELSE $3::text END,
			error = $4,
			updated_at = now()
		WHERE hash = $1 AND status NOT IN ($5, $6, $7, $8)`,
		hash, status, txHash, errMsg,
		types.StatusSuccess, types.StatusAborted, types.StatusFailed,
		types.StatusExpired,
	)
	if err != nil {
		return fmt.Errorf("couldn't update message status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		p.log.Debug("status is not updated", "hash", hash, "status", status)
	}

	return nil
}

// ConfirmMessage marks the message whose body hash matches as seen on chain.
func (p *Postgres) ConfirmMessage(ctx context.Context, bodyUUID uuid.UUID,
	txHash string) (bool, error) {

	tag, err := p.pg.Exec(ctx, `
		UPDATE external_message
		SET status = $2, tx_hash = $3, updated_at = now()
		WHERE body_uuid = $1 AND status IN ($4, $5)`,
		bodyUUID, types.StatusConfirmed, txHash,
		types.StatusPending, types.StatusSubmitted,
	)
	if err != nil {
		return false, fmt.Errorf("couldn't confirm message: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ExpireMessages marks messages that were never seen on chain before their
// timeout elapsed.
func (p *Postgres) ExpireMessages(ctx context.Context, now time.Time) (
	int64, error) {

	tag, err := p.pg.Exec(ctx, `
		UPDATE external_message
		SET status = $1, updated_at = now()
		WHERE expires_at < $2 AND status IN ($3, $4)`,
		types.StatusExpired, now, types.StatusPending, types.StatusSubmitted,
	)
	if err != nil {
		return 0, fmt.Errorf("couldn't expire messages: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (p *Postgres) GetMessage(ctx context.Context, hash string) (
	*types.MessageRecord, error) {

	rows, err := p.pg.Query(ctx,
		`SELECT `+messageColumns+` FROM external_message WHERE hash = $1`, hash)
	if err != nil {
		return nil, fmt.Errorf("couldn't get message: %w", err)
	}

	msg, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[types.MessageRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't scan message: %w", err)
	}

	return msg, nil
}

// GetUnnotifiedResults returns messages in a final status that haven't been
// reported yet.
func (p *Postgres) GetUnnotifiedResults(ctx context.Context, limit int64) (
	[]types.MessageRecord, error) {

	rows, err := p.pg.Query(ctx, `
		SELECT `+messageColumns+`
		FROM external_message
		WHERE NOT notified AND status IN ($1, $2, $3, $4)
		ORDER BY updated_at
		LIMIT $5`,
		types.StatusSuccess, types.StatusAborted, types.StatusFailed,
		types.StatusExpired, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't get results: %w", err)
	}

	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[types.MessageRecord])
	if err != nil {
		return nil, fmt.Errorf("couldn't scan results: %w", err)
	}

	return results, nil
}

func (p *Postgres) MarkNotified(ctx context.Context, hashes []string) error {
	_, err := p.pg.Exec(ctx,
		`UPDATE external_message SET notified = true WHERE hash = ANY($1)`,
		hashes,
	)
	if err != nil {
		return fmt.Errorf("couldn't mark notified: %w", err)
	}

	return nil
}
