// Package paginate walks continuation-token result sets under a page cap.
package paginate

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"reputest/internal/logging"
)

const (
	// SearchMaxPages caps message search walks.
	SearchMaxPages = 10
	// ListingMaxPages caps relationship listing walks.
	ListingMaxPages = 15
	// DefaultDelay paces consecutive page requests.
	DefaultDelay = 500 * time.Millisecond
)

// Page is one response of a paginated endpoint.
type Page[T any] struct {
	Items     []T
	NextToken string
}

// FetchFunc requests the page identified by token ("" for the first page).
type FetchFunc[T any] func(ctx context.Context, token string) (Page[T], error)

// HandleFunc consumes a page before the next one is requested.
type HandleFunc[T any] func(ctx context.Context, items []T) error

type Options struct {
	Name     string
	MaxPages int
	Delay    time.Duration
	Logger   *zap.Logger
}

// Result summarizes a walk.
type Result struct {
	Pages int
	Items int
	// Capped is set when the walk stopped at MaxPages with a token still pending.
	Capped bool
}

// Walk fetches pages until no continuation token is returned or MaxPages is
// reached, handing each page to handle in order. Fetch and handle errors abort
// the walk; pages already handled are not revisited.
func Walk[T any](ctx context.Context, opts Options, fetch FetchFunc[T], handle HandleFunc[T]) (Result, error) {
	var res Result
	logger := logging.OrNop(opts.Logger)
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	pace := rate.NewLimiter(limit, 1)

	token := ""
	for {
		if err := pace.Wait(ctx); err != nil {
			return res, err
		}
		page, err := fetch(ctx, token)
		if err != nil {
			return res, err
		}
		res.Pages++
		res.Items += len(page.Items)
		if handle != nil && len(page.Items) > 0 {
			if err := handle(ctx, page.Items); err != nil {
				return res, err
			}
		}
		token = page.NextToken
		if token == "" {
			return res, nil
		}
		if res.Pages >= maxPages {
			res.Capped = true
			logger.Warn("page cap reached, stopping pagination",
				zap.String("walk", opts.Name), zap.Int("pages", res.Pages), zap.Int("items", res.Items))
			return res, nil
		}
	}
}

// Collect walks every page and returns the gathered items.
func Collect[T any](ctx context.Context, opts Options, fetch FetchFunc[T]) ([]T, Result, error) {
	var all []T
	res, err := Walk(ctx, opts, fetch, func(_ context.Context, items []T) error {
		all = append(all, items...)
		return nil
	})
	return all, res, err
}
