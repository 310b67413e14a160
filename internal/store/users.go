package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"reputest/internal/model"
)

// UpsertIdentity inserts or refreshes a user. A nil follower count keeps the stored one.
func (d *DB) UpsertIdentity(ctx context.Context, u model.User) error {
	var followers sql.NullInt64
	if u.FollowersCount != nil {
		followers = sql.NullInt64{Int64: int64(*u.FollowersCount), Valid: true}
	}
	_, err := d.exec(ctx, `INSERT INTO users(id, username, username_key, name, created_at, follower_count, updated_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		  username=excluded.username,
		  username_key=excluded.username_key,
		  name=excluded.name,
		  created_at=excluded.created_at,
		  follower_count=COALESCE(excluded.follower_count, users.follower_count),
		  updated_at=excluded.updated_at`,
		u.ID, u.Username, handleKey(u.Username), u.Name, nanos(u.CreatedAt), followers, nanos(time.Now()))
	return err
}

// FindIdentityByHandle looks a user up by handle, ignoring case and a leading "@".
func (d *DB) FindIdentityByHandle(ctx context.Context, handle string) (model.User, bool, error) {
	var (
		u         model.User
		createdAt int64
		followers sql.NullInt64
	)
	found, err := d.queryRow(ctx, `SELECT id, username, name, created_at, follower_count FROM users
		WHERE username_key = ? ORDER BY updated_at DESC LIMIT 1`,
		[]any{handleKey(handle)}, &u.ID, &u.Username, &u.Name, &createdAt, &followers)
	if err != nil || !found {
		return model.User{}, false, err
	}
	u.CreatedAt = fromNanos(createdAt)
	if followers.Valid {
		n := int(followers.Int64)
		u.FollowersCount = &n
	}
	return u, true, nil
}

// UpsertFollowEdges records that followerID follows each of followedIDs.
func (d *DB) UpsertFollowEdges(ctx context.Context, followerID string, followedIDs []string) error {
	now := nanos(time.Now())
	for _, id := range followedIDs {
		if _, err := d.exec(ctx, `INSERT INTO following(follower_id, followed_id, updated_at) VALUES(?,?,?)
			ON CONFLICT(follower_id, followed_id) DO UPDATE SET updated_at=excluded.updated_at`,
			followerID, id, now); err != nil {
			return err
		}
	}
	return nil
}

// CountFollowedEmitters counts accounts followed by followerID that sent good vibes to sensorID.
func (d *DB) CountFollowedEmitters(ctx context.Context, followerID, sensorID string) (int, error) {
	var n int
	_, err := d.queryRow(ctx, `SELECT COUNT(DISTINCT f.followed_id) FROM following f
		JOIN good_vibes g ON g.emitter_id = f.followed_id
		WHERE f.follower_id = ? AND g.sensor_id = ?`, []any{followerID, sensorID}, &n)
	return n, err
}

func handleKey(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
