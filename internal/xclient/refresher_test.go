package xclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reputest/internal/credentials"
	"reputest/internal/model"
	"reputest/internal/store"
)

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRefresherExchangesAndPersists(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "sec" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "r1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","token_type":"bearer","expires_in":7200}`))
	}))
	defer ts.Close()

	db := openStore(t)
	creds := credentials.NewStore(credentials.Credential{AccessToken: "a1", RefreshToken: "r1", ClientID: "id", ClientSecret: "sec"})
	r := NewTokenRefresher(ts.Client(), ts.URL, creds, db, nil)

	got, err := r.Refresh(context.Background(), creds.Current())
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r2", got.RefreshToken)
	assert.Equal(t, got, creds.Current())

	ctx := context.Background()
	access, ok, err := db.LatestToken(ctx, model.AccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a2", access)
	refresh, ok, err := db.LatestToken(ctx, model.RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r2", refresh)
}

func TestRefresherKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"a2"}`))
	}))
	defer ts.Close()

	db := openStore(t)
	creds := credentials.NewStore(credentials.Credential{AccessToken: "a1", RefreshToken: "r1", ClientID: "id", ClientSecret: "sec"})
	got, err := NewTokenRefresher(ts.Client(), ts.URL, creds, db, nil).Refresh(context.Background(), creds.Current())
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RefreshToken)

	_, ok, err := db.LatestToken(context.Background(), model.RefreshToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefresherRejectionCarriesBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_request","error_description":"Value passed for the token was invalid."}`))
	}))
	defer ts.Close()

	creds := credentials.NewStore(credentials.Credential{AccessToken: "a1", RefreshToken: "revoked", ClientID: "id", ClientSecret: "sec"})
	_, err := NewTokenRefresher(ts.Client(), ts.URL, creds, openStore(t), nil).Refresh(context.Background(), creds.Current())
	require.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Contains(t, err.Error(), "invalid_request")
	assert.Equal(t, "a1", creds.Current().AccessToken)
}

func TestRefresherSkipsExchangeWhenAlreadyReplaced(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"access_token":"unexpected"}`))
	}))
	defer ts.Close()

	creds := credentials.NewStore(credentials.Credential{AccessToken: "a1", RefreshToken: "r1", ClientID: "id", ClientSecret: "sec"})
	stale := creds.Current()
	creds.Replace("a2", "")

	got, err := NewTokenRefresher(ts.Client(), ts.URL, creds, openStore(t), nil).Refresh(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRefresherCoalescesConcurrentCallers(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte(`{"access_token":"a2"}`))
	}))
	defer ts.Close()

	creds := credentials.NewStore(credentials.Credential{AccessToken: "a1", RefreshToken: "r1", ClientID: "id", ClientSecret: "sec"})
	r := NewTokenRefresher(ts.Client(), ts.URL, creds, openStore(t), nil)
	stale := creds.Current()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Refresh(context.Background(), stale)
			assert.NoError(t, err)
			assert.Equal(t, "a2", got.AccessToken)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
