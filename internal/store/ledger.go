package store

import (
	"context"
	"time"
)

// ClaimAcknowledgement records that messageID is being acknowledged.
// It returns false when the message was claimed before.
func (d *DB) ClaimAcknowledgement(ctx context.Context, messageID, kind string) (bool, error) {
	res, err := d.exec(ctx, `INSERT INTO acknowledgements(message_id, kind, created_at) VALUES(?,?,?)
		ON CONFLICT(message_id) DO NOTHING`, messageID, kind, nanos(time.Now()))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (d *DB) AcknowledgementExists(ctx context.Context, messageID string) (bool, error) {
	var one int
	return d.queryRow(ctx, `SELECT 1 FROM acknowledgements WHERE message_id = ?`, []any{messageID}, &one)
}

// PutAction logs an outbound action for budget accounting.
func (d *DB) PutAction(ctx context.Context, ts time.Time, typ string) error {
	_, err := d.exec(ctx, `INSERT INTO actions(ts, type) VALUES(?, ?)`, nanos(ts), typ)
	return err
}

// CountActionsWithin counts actions of typ in [start, end).
func (d *DB) CountActionsWithin(ctx context.Context, start, end time.Time, typ string) (int, error) {
	var n int
	_, err := d.queryRow(ctx, `SELECT COUNT(*) FROM actions WHERE type = ? AND ts >= ? AND ts < ?`,
		[]any{typ, nanos(start), nanos(end)}, &n)
	return n, err
}

func (d *DB) SaveCursor(ctx context.Context, key, value string) error {
	_, err := d.exec(ctx, `INSERT INTO cursors(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

// LoadCursor returns "" when the key was never saved.
func (d *DB) LoadCursor(ctx context.Context, key string) (string, error) {
	var v string
	_, err := d.queryRow(ctx, `SELECT value FROM cursors WHERE key = ?`, []any{key}, &v)
	return v, err
}
