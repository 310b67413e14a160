package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reputest/internal/config"
	"reputest/internal/model"
	"reputest/internal/store"
)

func TestLoadConfigOptionalFallsBackToDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	cfg, err := loadConfig(missing, true)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Account.Handle, cfg.Account.Handle)

	_, err = loadConfig(missing, false)
	assert.Error(t, err)
}

func TestPrintScores(t *testing.T) {
	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, db.UpsertIdentity(ctx, model.User{ID: "1", Username: "alice"}))
	require.NoError(t, db.UpsertIdentity(ctx, model.User{ID: "2", Username: "bob"}))
	require.NoError(t, db.InsertVibeRecord(ctx, model.VibeRecord{TweetID: "v1", EmitterID: "1", SensorID: "2", CreatedAt: now}))
	require.NoError(t, db.InsertTransferRecord(ctx, model.TransferRecord{TweetID: "t1", SenderID: "2", ReceiverID: "1", Amount: 7, CreatedAt: now}))

	var out bytes.Buffer
	require.NoError(t, printScores(ctx, &out, db, "@alice", "bob"))
	assert.Equal(t, "@alice -> @bob: 1st degree 1, 2nd degree 0, 3rd degree 0\n@bob sent @alice 7 megajoules\n", out.String())

	assert.Error(t, printScores(ctx, &out, db, "alice", "ghost"))
}

func TestWireWithSeedsCredentials(t *testing.T) {
	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()
	cfg := config.Default()
	cfg.Credentials.AccessToken = "seed-access"

	a, err := wireWith(context.Background(), cfg, nil, db)
	require.NoError(t, err)
	assert.NotNil(t, a.runner)

	tok, ok, err := db.LatestToken(context.Background(), model.AccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "seed-access", tok)
}
