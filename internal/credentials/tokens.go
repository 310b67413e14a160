package credentials

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"reputest/internal/logging"
	"reputest/internal/model"
	"reputest/internal/secret"
)

var ErrNoToken = errors.New("no access token stored or configured")

// TokenRepository is the token-history part of the durable store.
type TokenRepository interface {
	LatestToken(ctx context.Context, kind model.TokenKind) (string, bool, error)
	SaveToken(ctx context.Context, kind model.TokenKind, token string) error
}

// SealedTokens encrypts tokens on save and decrypts them on read.
type SealedTokens struct {
	Inner  TokenRepository
	Cipher *secret.Cipher
	Logger *zap.Logger
}

func (s SealedTokens) SaveToken(ctx context.Context, kind model.TokenKind, token string) error {
	sealed, err := s.Cipher.Seal(token)
	if err != nil {
		return fmt.Errorf("seal %s token: %w", kind, err)
	}
	return s.Inner.SaveToken(ctx, kind, sealed)
}

// LatestToken treats a value that cannot be opened as absent.
func (s SealedTokens) LatestToken(ctx context.Context, kind model.TokenKind) (string, bool, error) {
	sealed, ok, err := s.Inner.LatestToken(ctx, kind)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.Cipher.Open(sealed)
	if err != nil {
		logging.OrNop(s.Logger).Error("stored token cannot be decrypted", zap.String("kind", string(kind)), zap.Error(err))
		return "", false, nil
	}
	return plain, true, nil
}

// Repository wraps repo with sealing when hexKey is set.
func Repository(repo TokenRepository, hexKey string, logger *zap.Logger) (TokenRepository, error) {
	if hexKey == "" {
		return repo, nil
	}
	c, err := secret.NewCipher(hexKey)
	if err != nil {
		return nil, err
	}
	return SealedTokens{Inner: repo, Cipher: c, Logger: logger}, nil
}

// Load builds the credential from the latest stored tokens. When the store has
// no access token yet, the seed tokens are saved first.
func Load(ctx context.Context, repo TokenRepository, seed Credential) (*Store, error) {
	cred := Credential{ClientID: seed.ClientID, ClientSecret: seed.ClientSecret}

	access, ok, err := repo.LatestToken(ctx, model.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("load access token: %w", err)
	}
	if !ok {
		if seed.AccessToken == "" {
			return nil, ErrNoToken
		}
		if err := repo.SaveToken(ctx, model.AccessToken, seed.AccessToken); err != nil {
			return nil, fmt.Errorf("save seed access token: %w", err)
		}
		access = seed.AccessToken
	}
	cred.AccessToken = access

	refresh, ok, err := repo.LatestToken(ctx, model.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if !ok && seed.RefreshToken != "" {
		if err := repo.SaveToken(ctx, model.RefreshToken, seed.RefreshToken); err != nil {
			return nil, fmt.Errorf("save seed refresh token: %w", err)
		}
		refresh = seed.RefreshToken
	}
	cred.RefreshToken = refresh
	return NewStore(cred), nil
}
