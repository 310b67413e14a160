package xclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"reputest/internal/credentials"
	"reputest/internal/logging"
	"reputest/internal/metrics"
	"reputest/internal/model"
)

// TokenSaver persists rotated tokens.
type TokenSaver interface {
	SaveToken(ctx context.Context, kind model.TokenKind, token string) error
}

// TokenRefresher runs the OAuth2 refresh_token grant. Concurrent callers
// holding the same stale token share a single exchange.
type TokenRefresher struct {
	doer     Doer
	tokenURL string
	creds    *credentials.Store
	tokens   TokenSaver
	logger   *zap.Logger
	group    singleflight.Group
}

func NewTokenRefresher(doer Doer, tokenURL string, creds *credentials.Store, tokens TokenSaver, logger *zap.Logger) *TokenRefresher {
	return &TokenRefresher{doer: doer, tokenURL: tokenURL, creds: creds, tokens: tokens, logger: logging.OrNop(logger)}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Refresh returns a credential newer than stale. When another caller already
// replaced stale, that credential is returned without a new exchange.
func (r *TokenRefresher) Refresh(ctx context.Context, stale credentials.Credential) (credentials.Credential, error) {
	v, err, _ := r.group.Do(stale.AccessToken, func() (any, error) {
		if cur := r.creds.Current(); cur.AccessToken != stale.AccessToken {
			return cur, nil
		}
		tok, err := r.exchange(ctx, stale)
		if err != nil {
			metrics.IncTokenRefresh("failed")
			return nil, err
		}
		if err := r.tokens.SaveToken(ctx, model.AccessToken, tok.AccessToken); err != nil {
			r.logger.Warn("failed to persist refreshed access token", zap.Error(err))
		}
		if tok.RefreshToken != "" {
			if err := r.tokens.SaveToken(ctx, model.RefreshToken, tok.RefreshToken); err != nil {
				r.logger.Warn("failed to persist rotated refresh token", zap.Error(err))
			}
		}
		cur, _ := r.creds.ReplaceIfCurrent(stale.AccessToken, tok.AccessToken, tok.RefreshToken)
		metrics.IncTokenRefresh("ok")
		r.logger.Info("access token refreshed", zap.Bool("refresh_rotated", tok.RefreshToken != ""))
		return cur, nil
	})
	if err != nil {
		return credentials.Credential{}, err
	}
	return v.(credentials.Credential), nil
}

func (r *TokenRefresher) exchange(ctx context.Context, c credentials.Credential) (tokenResponse, error) {
	var out tokenResponse
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.RefreshToken)
	form.Set("client_id", c.ClientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return out, err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.doer.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return out, fmt.Errorf("%w: read body: %v", ErrRefreshFailed, err)
	}
	if !success(resp.StatusCode) {
		r.logger.Error("token refresh rejected", zap.Int("status", resp.StatusCode), zap.String("body", logging.SanitizeBody(body)))
		return out, newAPIError(ErrRefreshFailed, "refresh token", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("%w: decode: %v", ErrRefreshFailed, err)
	}
	if out.AccessToken == "" {
		return out, newAPIError(ErrRefreshFailed, "refresh token", resp.StatusCode, body)
	}
	return out, nil
}
