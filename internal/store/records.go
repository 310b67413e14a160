package store

import (
	"context"

	"reputest/internal/model"
)

func (d *DB) VibeRecordExistsForMessage(ctx context.Context, tweetID string) (bool, error) {
	var one int
	return d.queryRow(ctx, `SELECT 1 FROM good_vibes WHERE tweet_id = ?`, []any{tweetID}, &one)
}

func (d *DB) VibeRecordExistsForPair(ctx context.Context, emitterID, sensorID string) (bool, error) {
	var one int
	return d.queryRow(ctx, `SELECT 1 FROM good_vibes WHERE emitter_id = ? AND sensor_id = ? LIMIT 1`,
		[]any{emitterID, sensorID}, &one)
}

// OriginatingMessageID returns the tweet that first recorded vibes from emitter to sensor.
func (d *DB) OriginatingMessageID(ctx context.Context, emitterID, sensorID string) (string, bool, error) {
	var id string
	found, err := d.queryRow(ctx, `SELECT tweet_id FROM good_vibes WHERE emitter_id = ? AND sensor_id = ?
		ORDER BY created_at ASC LIMIT 1`, []any{emitterID, sensorID}, &id)
	return id, found, err
}

// InsertVibeRecord returns ErrDuplicate when the tweet was already recorded.
func (d *DB) InsertVibeRecord(ctx context.Context, r model.VibeRecord) error {
	_, err := d.exec(ctx, `INSERT INTO good_vibes(tweet_id, emitter_id, sensor_id, created_at) VALUES(?,?,?,?)`,
		r.TweetID, r.EmitterID, r.SensorID, nanos(r.CreatedAt))
	return err
}

func (d *DB) TransferRecordExistsForMessage(ctx context.Context, tweetID string) (bool, error) {
	var one int
	return d.queryRow(ctx, `SELECT 1 FROM megajoules WHERE tweet_id = ?`, []any{tweetID}, &one)
}

// InsertTransferRecord returns ErrDuplicate when the tweet was already recorded.
func (d *DB) InsertTransferRecord(ctx context.Context, r model.TransferRecord) error {
	_, err := d.exec(ctx, `INSERT INTO megajoules(tweet_id, sender_id, receiver_id, amount, created_at) VALUES(?,?,?,?,?)`,
		r.TweetID, r.SenderID, r.ReceiverID, r.Amount, nanos(r.CreatedAt))
	return err
}

// TransferTotal sums megajoules sent from sender to receiver.
func (d *DB) TransferTotal(ctx context.Context, senderID, receiverID string) (int64, error) {
	var total int64
	_, err := d.queryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM megajoules WHERE sender_id = ? AND receiver_id = ?`,
		[]any{senderID, receiverID}, &total)
	return total, err
}
