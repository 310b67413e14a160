package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reputest/internal/ingest"
	"reputest/internal/logging"
	"reputest/internal/metrics"
	"reputest/internal/model"
	"reputest/internal/paginate"
)

const (
	cursorKey = "ingest:last_ts"
	// cursorOverlap re-reads the tail of the previous window; dedup makes it safe.
	cursorOverlap = 5 * time.Minute
)

// Source is the read side of the API client.
type Source interface {
	SearchRecent(ctx context.Context, query string, since time.Time, nextToken string) (paginate.Page[model.Message], error)
	DirectMessages(ctx context.Context, since time.Time, nextToken string) (paginate.Page[model.Message], error)
}

type CursorStore interface {
	LoadCursor(ctx context.Context, key string) (string, error)
	SaveCursor(ctx context.Context, key, value string) error
}

// Processor handles one page of messages.
type Processor interface {
	ProcessBatch(ctx context.Context, msgs []model.Message) ingest.BatchStats
}

type Options struct {
	Queries        []string
	Lookback       time.Duration
	SearchMaxPages int
	DirectMessages bool
	DMMaxPages     int
	PageDelay      time.Duration
}

// Runner executes ingestion passes.
type Runner struct {
	source  Source
	cursors CursorStore
	proc    Processor
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

func NewRunner(source Source, cursors CursorStore, proc Processor, opts Options, logger *zap.Logger) *Runner {
	if opts.SearchMaxPages <= 0 {
		opts.SearchMaxPages = paginate.SearchMaxPages
	}
	if opts.DMMaxPages <= 0 {
		opts.DMMaxPages = paginate.SearchMaxPages
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 6 * time.Hour
	}
	return &Runner{source: source, cursors: cursors, proc: proc, opts: opts, logger: logging.OrNop(logger), now: time.Now}
}

// RunOnce fetches messages since the last cursor (bounded by the lookback),
// processes them page by page, and advances the cursor on success. The cursor
// never moves past the oldest message whose processing failed, so the next
// pass fetches it again.
//
// Cancelling ctx stops the pass between pages; a request already in flight
// runs to completion. The first fetch error aborts the pass.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := r.now().UTC()
	logger := r.logger.With(zap.String("run_id", uuid.NewString()))
	metrics.IngestRuns.Inc()
	defer metrics.ObserveIngestDuration(start)

	oldestFailure, err := r.pass(ctx, logger, start)
	if err != nil {
		metrics.IngestErrors.Inc()
		logger.Error("ingest pass aborted", zap.Error(err))
		return err
	}
	cursor := start
	if !oldestFailure.IsZero() && oldestFailure.Before(cursor) {
		cursor = oldestFailure.UTC()
		logger.Warn("holding cursor back for failed messages", zap.Time("cursor", cursor))
	}
	if err := r.cursors.SaveCursor(context.WithoutCancel(ctx), cursorKey, cursor.Format(time.RFC3339Nano)); err != nil {
		logger.Warn("failed to save cursor", zap.Error(err))
	}
	return nil
}

// pass returns the creation time of the oldest failed message, zero when none failed.
func (r *Runner) pass(ctx context.Context, logger *zap.Logger, start time.Time) (time.Time, error) {
	// in-flight work outlives a stop request; ctx is only checked between pages
	work := context.WithoutCancel(ctx)
	since := r.since(work, logger, start)
	logger.Info("ingest pass started", zap.Time("since", since), zap.Int("queries", len(r.opts.Queries)))
	var oldest time.Time

	for _, q := range r.opts.Queries {
		query := q
		res, err := r.walk(ctx, work, logger, &oldest, paginate.Options{
			Name:     "search",
			MaxPages: r.opts.SearchMaxPages,
			Delay:    r.opts.PageDelay,
			Logger:   logger,
		}, func(token string) (paginate.Page[model.Message], error) {
			return r.source.SearchRecent(work, query, since, token)
		})
		if err != nil {
			return oldest, fmt.Errorf("search %q: %w", query, err)
		}
		logger.Info("query done", zap.String("query", query), zap.Int("pages", res.Pages), zap.Int("messages", res.Items))
	}

	if r.opts.DirectMessages {
		res, err := r.walk(ctx, work, logger, &oldest, paginate.Options{
			Name:     "dm",
			MaxPages: r.opts.DMMaxPages,
			Delay:    r.opts.PageDelay,
			Logger:   logger,
		}, func(token string) (paginate.Page[model.Message], error) {
			return r.source.DirectMessages(work, since, token)
		})
		if err != nil {
			return oldest, fmt.Errorf("direct messages: %w", err)
		}
		logger.Info("direct messages done", zap.Int("pages", res.Pages), zap.Int("messages", res.Items))
	}
	return oldest, nil
}

func (r *Runner) walk(stop, work context.Context, logger *zap.Logger, oldest *time.Time, opts paginate.Options,
	fetch func(token string) (paginate.Page[model.Message], error)) (paginate.Result, error) {
	return paginate.Walk(stop, opts, func(_ context.Context, token string) (paginate.Page[model.Message], error) {
		page, err := fetch(token)
		if err == nil {
			metrics.IncPage(opts.Name)
		}
		return page, err
	}, func(_ context.Context, msgs []model.Message) error {
		stats := r.proc.ProcessBatch(work, msgs)
		if f := stats.OldestFailure; !f.IsZero() && (oldest.IsZero() || f.Before(*oldest)) {
			*oldest = f
		}
		logger.Debug("page processed", zap.String("walk", opts.Name), zap.Int("messages", len(msgs)),
			zap.Int("recorded", stats.Counts[ingest.OutcomeRecorded]), zap.Int("failed", stats.Counts[ingest.OutcomeFailed]))
		return nil
	})
}

// since is max(now - lookback, cursor - overlap).
func (r *Runner) since(ctx context.Context, logger *zap.Logger, now time.Time) time.Time {
	since := now.Add(-r.opts.Lookback)
	v, err := r.cursors.LoadCursor(ctx, cursorKey)
	if err != nil {
		logger.Warn("failed to load cursor", zap.Error(err))
		return since
	}
	if v == "" {
		return since
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		logger.Warn("ignoring malformed cursor", zap.String("cursor", v))
		return since
	}
	if c := ts.Add(-cursorOverlap); c.After(since) {
		since = c
	}
	return since
}
