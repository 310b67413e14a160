package xclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"reputest/internal/credentials"
	"reputest/internal/logging"
)

const maxResponseBytes = 4 << 20

// Doer is the outbound HTTP transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is a replayable request template; the Authorization header is
// added on every send.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Refresher exchanges the refresh token of stale for a new credential.
type Refresher interface {
	Refresh(ctx context.Context, stale credentials.Credential) (credentials.Credential, error)
}

// Executor sends authenticated requests and survives one access-token expiry per call.
type Executor struct {
	doer      Doer
	creds     *credentials.Store
	refresher Refresher
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func NewExecutor(doer Doer, creds *credentials.Store, refresher Refresher, limiter *rate.Limiter, logger *zap.Logger) *Executor {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Executor{doer: doer, creds: creds, refresher: refresher, limiter: limiter, logger: logging.OrNop(logger)}
}

// Do sends r once with the current access token. On 401 it refreshes the
// token, when refresh credentials exist, and sends r exactly once more.
func (e *Executor) Do(ctx context.Context, op string, r Request) ([]byte, error) {
	cred := e.creds.Current()
	status, body, err := e.send(ctx, r, cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if success(status) {
		return body, nil
	}
	if status != http.StatusUnauthorized {
		return nil, e.fail(op, status, body)
	}
	if !cred.CanRefresh() {
		e.logger.Warn("unauthorized and no refresh credentials", zap.String("op", op), zap.String("body", logging.SanitizeBody(body)))
		return nil, newAPIError(ErrAuthUnavailable, op, status, body)
	}

	e.logger.Info("access token rejected, refreshing", zap.String("op", op))
	fresh, err := e.refresher.Refresh(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	status, body, err = e.send(ctx, r, fresh.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%s (after refresh): %w", op, err)
	}
	if success(status) {
		return body, nil
	}
	return nil, e.fail(op, status, body)
}

func (e *Executor) fail(op string, status int, body []byte) error {
	e.logger.Warn("api request failed", zap.String("op", op), zap.Int("status", status), zap.String("body", logging.SanitizeBody(body)))
	return newAPIError(ErrUpstream, op, status, body)
}

func (e *Executor) send(ctx context.Context, r Request, accessToken string) (int, []byte, error) {
	var rd io.Reader
	if r.Body != nil {
		rd = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, rd)
	if err != nil {
		return 0, nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if err := e.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	resp, err := e.doer.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func success(status int) bool { return status >= 200 && status < 300 }
