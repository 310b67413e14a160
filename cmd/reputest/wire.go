package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"go.uber.org/zap"

	"reputest/internal/config"
	"reputest/internal/credentials"
	"reputest/internal/identity"
	"reputest/internal/ingest"
	"reputest/internal/jobs"
	"reputest/internal/logging"
	"reputest/internal/store"
	"reputest/internal/xclient"
)

// app is the fully wired process.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *store.DB
	client *xclient.HTTPClient
	coord  *ingest.Coordinator
	runner *jobs.Runner
}

// loadConfig reads path; a missing file yields defaults when optional is set.
func loadConfig(path string, optional bool) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
			cfg.ResolveEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger, nil
}

func openStore(cfg config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	return db, nil
}

// wire builds every component of an ingestion pass from cfg.
func wire(ctx context.Context, cfg config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a, err := wireWith(ctx, cfg, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func wireWith(ctx context.Context, cfg config.Config, logger *zap.Logger, db *store.DB) (*app, error) {
	tokens, err := credentials.Repository(db, cfg.Credentials.EncryptionKey, logger)
	if err != nil {
		return nil, err
	}
	creds, err := credentials.Load(ctx, tokens, credentials.Credential{
		AccessToken:  cfg.Credentials.AccessToken,
		RefreshToken: cfg.Credentials.RefreshToken,
		ClientID:     cfg.Credentials.ClientID,
		ClientSecret: cfg.Credentials.ClientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	httpc := &http.Client{Timeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second}
	refresher := xclient.NewTokenRefresher(httpc, cfg.API.TokenURL, creds, tokens, logger)
	exec := xclient.NewExecutor(httpc, creds, refresher, xclient.NewLimiter(cfg.API.RPS, cfg.API.Burst), logger)
	client := xclient.NewHTTPClient(cfg.API.BaseURL, exec, logger)

	coord := ingest.NewCoordinator(ingest.Deps{
		Resolver:  identity.NewResolver(db, client, logger),
		Store:     db,
		Following: client,
		Replier:   ingest.XReplier{Client: client},
		Budget:    ingest.NewBudget(db, cfg.Replies.MaxPerHour, cfg.Replies.MaxPerDay),
		Logger:    logger,
	}, ingest.Options{
		BotHandle:         cfg.Account.Handle,
		FollowingMaxPages: cfg.Following.MaxPages,
		PageDelay:         cfg.PageDelay(),
		RepliesEnabled:    cfg.Replies.Enabled,
	})

	runner := jobs.NewRunner(client, db, coord, jobs.Options{
		Queries:        cfg.Search.Queries,
		Lookback:       cfg.Lookback(),
		SearchMaxPages: cfg.Search.MaxPages,
		DirectMessages: cfg.DirectMessages.Enabled,
		DMMaxPages:     cfg.DirectMessages.MaxPages,
		PageDelay:      cfg.PageDelay(),
	}, logger)

	return &app{cfg: cfg, logger: logger, db: db, client: client, coord: coord, runner: runner}, nil
}

func (a *app) Close() {
	_ = a.logger.Sync()
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
}
