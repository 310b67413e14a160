package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reputest/internal/model"
	"reputest/internal/store"
)

type fakeLookup struct {
	users map[string]model.User
	err   error
	calls int
}

func (f *fakeLookup) LookupByHandle(ctx context.Context, handle string) (model.User, bool, error) {
	f.calls++
	if f.err != nil {
		return model.User{}, false, f.err
	}
	u, ok := f.users[handle]
	return u, ok, nil
}

func newResolver(t *testing.T, remote *fakeLookup) (*Resolver, *store.DB) {
	t.Helper()
	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewResolver(db, remote, nil), db
}

func TestResolveWritesThrough(t *testing.T) {
	remote := &fakeLookup{users: map[string]model.User{
		"alice": {ID: "1", Username: "alice", Name: "Alice", CreatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
	r, db := newResolver(t, remote)
	ctx := context.Background()

	u, ok, err := r.Resolve(ctx, "@alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", u.ID)
	assert.Equal(t, 1, remote.calls)

	cached, ok, err := db.FindIdentityByHandle(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", cached.Name)

	_, ok, err = r.Resolve(ctx, "ALICE")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, remote.calls, "second resolve is served from the store")
}

func TestResolveNotFoundIsNotAnError(t *testing.T) {
	r, _ := newResolver(t, &fakeLookup{})
	_, ok, err := r.Resolve(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveLookupFailurePropagates(t *testing.T) {
	boom := errors.New("network down")
	r, _ := newResolver(t, &fakeLookup{err: boom})
	_, ok, err := r.Resolve(context.Background(), "alice")
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}

func TestObserveCachesAuthors(t *testing.T) {
	remote := &fakeLookup{}
	r, _ := newResolver(t, remote)
	ctx := context.Background()

	require.NoError(t, r.Observe(ctx, model.User{ID: "9", Username: "bob", Name: "Bob"}))
	require.NoError(t, r.Observe(ctx, model.User{ID: "10"}))

	u, ok, err := r.Resolve(ctx, "bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "9", u.ID)
	assert.Equal(t, 0, remote.calls)
}
