// Package identity maps handles to users through the local store, falling
// back to the API and caching what it finds.
package identity

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reputest/internal/logging"
	"reputest/internal/model"
)

// Store is the identity part of the durable store.
type Store interface {
	FindIdentityByHandle(ctx context.Context, handle string) (model.User, bool, error)
	UpsertIdentity(ctx context.Context, u model.User) error
}

// Lookup is the remote user lookup.
type Lookup interface {
	LookupByHandle(ctx context.Context, handle string) (model.User, bool, error)
}

type Resolver struct {
	store  Store
	remote Lookup
	logger *zap.Logger
}

func NewResolver(store Store, remote Lookup, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, remote: remote, logger: logging.OrNop(logger)}
}

// Resolve returns ok=false, without error, when no such user exists upstream.
func (r *Resolver) Resolve(ctx context.Context, handle string) (model.User, bool, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if u, ok, err := r.store.FindIdentityByHandle(ctx, handle); err != nil {
		return model.User{}, false, fmt.Errorf("find identity %q: %w", handle, err)
	} else if ok {
		return u, true, nil
	}

	u, ok, err := r.remote.LookupByHandle(ctx, handle)
	if err != nil {
		return model.User{}, false, fmt.Errorf("lookup %q: %w", handle, err)
	}
	if !ok {
		r.logger.Info("handle not found upstream", zap.String("handle", handle))
		return model.User{}, false, nil
	}
	if err := r.store.UpsertIdentity(ctx, u); err != nil {
		return model.User{}, false, fmt.Errorf("cache identity %q: %w", handle, err)
	}
	return u, true, nil
}

// Observe caches a user seen in an API response, e.g. a message author.
func (r *Resolver) Observe(ctx context.Context, u model.User) error {
	if u.ID == "" || u.Username == "" {
		return nil
	}
	return r.store.UpsertIdentity(ctx, u)
}
