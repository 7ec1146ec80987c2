package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/vigil-btc/vigild/internal/core/domain"
)

const sqliteDbFile = "sqlite.db"

type switchRepository struct {
	db *sql.DB
}

func NewSwitchRepository(config ...interface{}) (domain.SwitchRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}

	db, err := OpenDb(filepath.Join(baseDir, sqliteDbFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open switch store: %s", err)
	}

	return &switchRepository{db}, nil
}

func (r *switchRepository) AddOrUpdateSwitch(
	ctx context.Context, sw domain.Switch,
) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		var payoutTxid, payoutErr sql.NullString
		var payoutTimestamp sql.NullInt64
		if sw.PayoutResult != nil {
			payoutTxid = sql.NullString{String: sw.PayoutResult.Txid, Valid: true}
			payoutErr = sql.NullString{String: sw.PayoutResult.Err, Valid: true}
			payoutTimestamp = sql.NullInt64{Int64: sw.PayoutResult.Timestamp, Valid: true}
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO switch (
				id, owner, name, description, source_address, check_in_interval,
				last_check_in, status, created_at, trigger_attempts,
				last_trigger_attempt, payout_txid, payout_err, payout_timestamp,
				version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				last_check_in = excluded.last_check_in,
				status = excluded.status,
				trigger_attempts = excluded.trigger_attempts,
				last_trigger_attempt = excluded.last_trigger_attempt,
				payout_txid = excluded.payout_txid,
				payout_err = excluded.payout_err,
				payout_timestamp = excluded.payout_timestamp,
				version = excluded.version`,
			sw.Id, sw.Owner, sw.Name, sw.Description, sw.SourceAddress,
			sw.CheckInInterval, sw.LastCheckIn, int(sw.Status), sw.CreatedAt,
			sw.TriggerAttempts, sw.LastTriggerAttempt, payoutTxid, payoutErr,
			payoutTimestamp, sw.Version,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(
			ctx, "DELETE FROM recipient WHERE switch_id = ?", sw.Id,
		); err != nil {
			return err
		}

		for position, recipient := range sw.Recipients {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO recipient (switch_id, position, name, address, amount)
				VALUES (?, ?, ?, ?, ?)`,
				sw.Id, position, recipient.Name, recipient.Address, recipient.Amount,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *switchRepository) GetSwitchWithId(
	ctx context.Context, id string,
) (*domain.Switch, error) {
	switches, err := r.findSwitches(
		ctx, "SELECT "+switchColumns+" FROM switch WHERE id = ?", id,
	)
	if err != nil {
		return nil, err
	}
	if len(switches) <= 0 {
		return nil, fmt.Errorf("switch with id %s not found", id)
	}
	return &switches[0], nil
}

func (r *switchRepository) GetSwitchesForOwner(
	ctx context.Context, owner string,
) ([]domain.Switch, error) {
	return r.findSwitches(
		ctx,
		"SELECT "+switchColumns+" FROM switch WHERE owner = ? ORDER BY created_at",
		owner,
	)
}

func (r *switchRepository) GetExpiredSwitchIds(
	ctx context.Context, now int64,
) ([]string, error) {
	return r.findIds(
		ctx,
		"SELECT id FROM switch WHERE status = ? AND last_check_in + check_in_interval <= ?",
		int(domain.StatusActive), now,
	)
}

func (r *switchRepository) GetAllActiveSwitchIds(
	ctx context.Context,
) ([]string, error) {
	return r.findIds(
		ctx, "SELECT id FROM switch WHERE status = ?", int(domain.StatusActive),
	)
}

func (r *switchRepository) GetPendingSwitchIds(
	ctx context.Context,
) ([]string, error) {
	return r.findIds(
		ctx, "SELECT id FROM switch WHERE status = ?", int(domain.StatusPending),
	)
}

func (r *switchRepository) findIds(
	ctx context.Context, query string, args ...interface{},
) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *switchRepository) Close() {
	// nolint:errcheck
	r.db.Close()
}

const switchColumns = `id, owner, name, description, source_address,
	check_in_interval, last_check_in, status, created_at, trigger_attempts,
	last_trigger_attempt, payout_txid, payout_err, payout_timestamp, version`

func (r *switchRepository) findSwitches(
	ctx context.Context, query string, args ...interface{},
) ([]domain.Switch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// The pool is capped at a single connection, so all switch rows must be
	// drained and released before the recipient queries run.
	switches := make([]domain.Switch, 0)
	for rows.Next() {
		var sw domain.Switch
		var status int
		var payoutTxid, payoutErr sql.NullString
		var payoutTimestamp sql.NullInt64

		if err := rows.Scan(
			&sw.Id, &sw.Owner, &sw.Name, &sw.Description, &sw.SourceAddress,
			&sw.CheckInInterval, &sw.LastCheckIn, &status, &sw.CreatedAt,
			&sw.TriggerAttempts, &sw.LastTriggerAttempt, &payoutTxid,
			&payoutErr, &payoutTimestamp, &sw.Version,
		); err != nil {
			rows.Close()
			return nil, err
		}
		sw.Status = domain.SwitchStatus(status)
		if payoutTxid.Valid || payoutErr.Valid {
			sw.PayoutResult = &domain.PayoutResult{
				Txid:      payoutTxid.String,
				Err:       payoutErr.String,
				Timestamp: payoutTimestamp.Int64,
			}
		}

		switches = append(switches, sw)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range switches {
		recipients, err := r.findRecipients(ctx, switches[i].Id)
		if err != nil {
			return nil, err
		}
		switches[i].Recipients = recipients
	}
	return switches, nil
}

func (r *switchRepository) findRecipients(
	ctx context.Context, switchId string,
) ([]domain.Recipient, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT name, address, amount FROM recipient WHERE switch_id = ? ORDER BY position",
		switchId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := make([]domain.Recipient, 0)
	for rows.Next() {
		var recipient domain.Recipient
		if err := rows.Scan(
			&recipient.Name, &recipient.Address, &recipient.Amount,
		); err != nil {
			return nil, err
		}
		recipients = append(recipients, recipient)
	}
	return recipients, rows.Err()
}
