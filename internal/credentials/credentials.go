// Package credentials holds the OAuth2 user-context credential shared by
// every API call of the process.
package credentials

import (
	"sync/atomic"
)

// Credential is an immutable snapshot. Replace it through Store, never in place.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// CanRefresh reports whether a refresh exchange can be attempted.
func (c Credential) CanRefresh() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// Store publishes the current credential to concurrent readers.
type Store struct {
	cur atomic.Pointer[Credential]
}

func NewStore(c Credential) *Store {
	s := &Store{}
	s.cur.Store(&c)
	return s
}

// Current returns the credential in effect.
func (s *Store) Current() Credential { return *s.cur.Load() }

// Replace installs a new access token, and a rotated refresh token when non-empty.
func (s *Store) Replace(accessToken, refreshToken string) Credential {
	for {
		old := s.cur.Load()
		next := rotate(*old, accessToken, refreshToken)
		if s.cur.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// ReplaceIfCurrent swaps in the new tokens only while staleAccess is still the
// access token in effect. It returns the credential in effect afterwards and
// whether this call installed it.
func (s *Store) ReplaceIfCurrent(staleAccess, accessToken, refreshToken string) (Credential, bool) {
	for {
		old := s.cur.Load()
		if old.AccessToken != staleAccess {
			return *old, false
		}
		next := rotate(*old, accessToken, refreshToken)
		if s.cur.CompareAndSwap(old, &next) {
			return next, true
		}
	}
}

func rotate(c Credential, accessToken, refreshToken string) Credential {
	c.AccessToken = accessToken
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	return c
}
