package store

import (
	"context"
	"fmt"
	"time"

	"reputest/internal/model"
)

func tokenTable(kind model.TokenKind) (string, error) {
	switch kind {
	case model.AccessToken:
		return "access_tokens", nil
	case model.RefreshToken:
		return "refresh_tokens", nil
	}
	return "", fmt.Errorf("unknown token kind %q", kind)
}

// SaveToken appends token to the history of kind. Older rows are kept.
func (d *DB) SaveToken(ctx context.Context, kind model.TokenKind, token string) error {
	table, err := tokenTable(kind)
	if err != nil {
		return err
	}
	_, err = d.exec(ctx, `INSERT INTO `+table+`(token, created_at) VALUES(?, ?)`, token, nanos(time.Now()))
	return err
}

// LatestToken returns the most recently saved token of kind; ok is false when none exists.
func (d *DB) LatestToken(ctx context.Context, kind model.TokenKind) (token string, ok bool, err error) {
	table, err := tokenTable(kind)
	if err != nil {
		return "", false, err
	}
	ok, err = d.queryRow(ctx, `SELECT token FROM `+table+` ORDER BY created_at DESC, id DESC LIMIT 1`, nil, &token)
	return token, ok, err
}
