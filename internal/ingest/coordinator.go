// Package ingest turns extracted intents into durable records and
// acknowledges the senders.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reputest/internal/extract"
	"reputest/internal/logging"
	"reputest/internal/metrics"
	"reputest/internal/model"
	"reputest/internal/paginate"
	"reputest/internal/store"
)

// Store is what the coordinator needs from the durable store.
type Store interface {
	VibeRecordExistsForMessage(ctx context.Context, tweetID string) (bool, error)
	VibeRecordExistsForPair(ctx context.Context, emitterID, sensorID string) (bool, error)
	OriginatingMessageID(ctx context.Context, emitterID, sensorID string) (string, bool, error)
	InsertVibeRecord(ctx context.Context, r model.VibeRecord) error
	TransferRecordExistsForMessage(ctx context.Context, tweetID string) (bool, error)
	InsertTransferRecord(ctx context.Context, r model.TransferRecord) error

	AcknowledgementExists(ctx context.Context, messageID string) (bool, error)
	ClaimAcknowledgement(ctx context.Context, messageID, kind string) (bool, error)

	UpsertIdentity(ctx context.Context, u model.User) error
	UpsertFollowEdges(ctx context.Context, followerID string, followedIDs []string) error
	CountFollowedEmitters(ctx context.Context, followerID, sensorID string) (int, error)
	VibeScores(ctx context.Context, emitterID, sensorID string) (model.VibeScore, error)
}

// Resolver maps handles to users.
type Resolver interface {
	Resolve(ctx context.Context, handle string) (model.User, bool, error)
	Observe(ctx context.Context, u model.User) error
}

// FollowingSource lists accounts followed by a user, one page at a time.
type FollowingSource interface {
	Following(ctx context.Context, userID, nextToken string) (paginate.Page[model.User], error)
}

type Deps struct {
	Extractor *extract.Extractor
	Resolver  Resolver
	Store     Store
	Following FollowingSource
	Replier   Replier
	Budget    *Budget
	Logger    *zap.Logger
}

type Options struct {
	BotHandle         string
	FollowingMaxPages int
	PageDelay         time.Duration
	RepliesEnabled    bool
}

// Coordinator processes messages one at a time: extract, resolve, dedup,
// persist, then acknowledge.
type Coordinator struct {
	Deps
	opts Options
	now  func() time.Time
}

func NewCoordinator(d Deps, opts Options) *Coordinator {
	d.Logger = logging.OrNop(d.Logger)
	if d.Extractor == nil {
		d.Extractor = extract.New(opts.BotHandle)
	}
	if opts.FollowingMaxPages <= 0 {
		opts.FollowingMaxPages = paginate.ListingMaxPages
	}
	return &Coordinator{Deps: d, opts: opts, now: time.Now}
}

// BatchStats summarizes one page.
type BatchStats struct {
	Counts map[Outcome]int
	// OldestFailure is the creation time of the oldest failed message; zero when none failed.
	OldestFailure time.Time
}

// ProcessBatch handles messages in order. Per-message failures are logged and
// never stop the batch.
func (c *Coordinator) ProcessBatch(ctx context.Context, msgs []model.Message) BatchStats {
	stats := BatchStats{Counts: map[Outcome]int{}}
	for _, m := range msgs {
		res := c.Process(ctx, m)
		stats.Counts[res.Outcome]++
		if res.Outcome == OutcomeFailed && !m.CreatedAt.IsZero() &&
			(stats.OldestFailure.IsZero() || m.CreatedAt.Before(stats.OldestFailure)) {
			stats.OldestFailure = m.CreatedAt
		}
	}
	return stats
}

// Process decides what msg means and then acknowledges it.
func (c *Coordinator) Process(ctx context.Context, msg model.Message) Result {
	logger := c.Logger.With(zap.String("message_id", msg.ID), zap.Stringer("source", msg.Source))
	if err := c.Resolver.Observe(ctx, msg.Author); err != nil {
		logger.Warn("failed to cache author", zap.Error(err))
	}

	res := c.decide(ctx, msg)
	metrics.IncOutcome(res.Outcome.String())
	switch res.Outcome {
	case OutcomeFailed:
		logger.Error("message processing failed", zap.Stringer("intent", res.Intent), zap.Error(res.Err))
	case OutcomeSkipped, OutcomeAlreadyProcessed:
		logger.Debug("message skipped", zap.Stringer("intent", res.Intent), zap.Stringer("outcome", res.Outcome))
	default:
		logger.Info("message processed", zap.Stringer("intent", res.Intent), zap.Stringer("outcome", res.Outcome))
	}
	c.acknowledge(ctx, logger, msg, res)
	return res
}

func (c *Coordinator) decide(ctx context.Context, msg model.Message) Result {
	if msg.Author.Username != "" && strings.EqualFold(msg.Author.Username, c.opts.BotHandle) {
		return Result{Outcome: OutcomeSkipped}
	}
	in := c.Extractor.Extract(msg.Text, extract.Context{ExcludeHandle: msg.InReplyToHandle})
	res := Result{Intent: in}
	metrics.IncIntent(in.Kind.String())
	if in.Kind == extract.NoIntent {
		res.Outcome = OutcomeSkipped
		return res
	}

	// a claimed message was fully handled by an earlier poll
	handled, err := c.Store.AcknowledgementExists(ctx, msg.ID)
	if err != nil {
		return failed(res, fmt.Errorf("check acknowledgement: %w", err))
	}
	if handled {
		res.Outcome = OutcomeAlreadyProcessed
		return res
	}

	who, found, err := c.Resolver.Resolve(ctx, in.Handle)
	if err != nil {
		return failed(res, err)
	}
	if !found {
		res.Outcome = OutcomeNotFound
		return res
	}
	res.Counterparty = who

	switch in.Kind {
	case extract.VibeDeclaration:
		return c.recordVibe(ctx, msg, res)
	case extract.Transfer:
		return c.recordTransfer(ctx, msg, res)
	case extract.FollowQuery:
		return c.answerFollowing(ctx, msg, res)
	case extract.DirectQuery:
		return c.answerScore(ctx, msg, res)
	}
	res.Outcome = OutcomeSkipped
	return res
}

// recordVibe stores "author received good vibes from the counterparty".
func (c *Coordinator) recordVibe(ctx context.Context, msg model.Message, res Result) Result {
	emitter, sensor := res.Counterparty.ID, msg.Author.ID
	if emitter == sensor {
		res.Outcome = OutcomeSkipped
		return res
	}
	seen, err := c.Store.VibeRecordExistsForMessage(ctx, msg.ID)
	if err != nil {
		return failed(res, err)
	}
	if seen {
		res.Outcome = OutcomeAlreadyProcessed
		return res
	}
	pair, err := c.Store.VibeRecordExistsForPair(ctx, emitter, sensor)
	if err != nil {
		return failed(res, err)
	}
	if pair {
		orig, _, err := c.Store.OriginatingMessageID(ctx, emitter, sensor)
		if err != nil {
			return failed(res, err)
		}
		res.OriginalID = orig
		res.Outcome = OutcomeDuplicatePair
		return res
	}
	err = c.Store.InsertVibeRecord(ctx, model.VibeRecord{TweetID: msg.ID, EmitterID: emitter, SensorID: sensor, CreatedAt: msg.CreatedAt})
	return inserted(res, err)
}

func (c *Coordinator) recordTransfer(ctx context.Context, msg model.Message, res Result) Result {
	sender, receiver := msg.Author.ID, res.Counterparty.ID
	if sender == receiver {
		res.Outcome = OutcomeSkipped
		return res
	}
	seen, err := c.Store.TransferRecordExistsForMessage(ctx, msg.ID)
	if err != nil {
		return failed(res, err)
	}
	if seen {
		res.Outcome = OutcomeAlreadyProcessed
		return res
	}
	err = c.Store.InsertTransferRecord(ctx, model.TransferRecord{
		TweetID: msg.ID, SenderID: sender, ReceiverID: receiver, Amount: res.Intent.Amount, CreatedAt: msg.CreatedAt,
	})
	return inserted(res, err)
}

// answerFollowing refreshes the counterparty's following list and counts
// the listed accounts that sent the asker good vibes.
func (c *Coordinator) answerFollowing(ctx context.Context, msg model.Message, res Result) Result {
	followerID := res.Counterparty.ID
	walk, err := paginate.Walk(ctx, paginate.Options{
		Name:     "following",
		MaxPages: c.opts.FollowingMaxPages,
		Delay:    c.opts.PageDelay,
		Logger:   c.Logger,
	}, func(ctx context.Context, token string) (paginate.Page[model.User], error) {
		page, err := c.Following.Following(ctx, followerID, token)
		if err == nil {
			metrics.IncPage("following")
		}
		return page, err
	}, func(ctx context.Context, users []model.User) error {
		ids := make([]string, 0, len(users))
		for _, u := range users {
			if err := c.Store.UpsertIdentity(ctx, u); err != nil {
				return err
			}
			ids = append(ids, u.ID)
		}
		return c.Store.UpsertFollowEdges(ctx, followerID, ids)
	})
	if err != nil {
		return failed(res, fmt.Errorf("fetch following: %w", err))
	}
	n, err := c.Store.CountFollowedEmitters(ctx, followerID, msg.Author.ID)
	if err != nil {
		return failed(res, err)
	}
	res.FollowCount = walk.Items
	res.FollowEmitters = n
	res.Outcome = OutcomeAnswered
	return res
}

// answerScore reports paths from the queried account (emitter) to the asker (sensor).
func (c *Coordinator) answerScore(ctx context.Context, msg model.Message, res Result) Result {
	s, err := c.Store.VibeScores(ctx, res.Counterparty.ID, msg.Author.ID)
	if err != nil {
		return failed(res, err)
	}
	res.Score = s
	res.Outcome = OutcomeAnswered
	return res
}

// acknowledge is the single place replies are sent. It claims the message
// first so a reply is attempted at most once; send failures are only logged.
func (c *Coordinator) acknowledge(ctx context.Context, logger *zap.Logger, msg model.Message, res Result) {
	text, ok := ReplyText(res)
	if !ok {
		return
	}
	claimed, err := c.Store.ClaimAcknowledgement(ctx, msg.ID, res.Outcome.String())
	if err != nil {
		logger.Warn("failed to claim acknowledgement", zap.Error(err))
		metrics.IncReply("failed")
		return
	}
	if !claimed {
		return
	}
	if !c.opts.RepliesEnabled || c.Replier == nil {
		metrics.IncReply("disabled")
		return
	}
	now := c.now()
	allowed, err := c.Budget.Allow(ctx, now)
	if err != nil {
		logger.Warn("reply budget check failed", zap.Error(err))
		metrics.IncReply("failed")
		return
	}
	if !allowed {
		logger.Info("reply budget exhausted, not replying")
		metrics.IncReply("throttled")
		return
	}
	if err := c.Replier.Reply(ctx, msg, text); err != nil {
		logger.Warn("failed to send acknowledgement", zap.Error(err))
		metrics.IncReply("failed")
		return
	}
	if err := c.Budget.Record(ctx, now); err != nil {
		logger.Warn("failed to record reply action", zap.Error(err))
	}
	metrics.IncReply("sent")
}

func failed(res Result, err error) Result {
	res.Outcome = OutcomeFailed
	res.Err = err
	return res
}

// inserted maps an insert error: a uniqueness violation means a concurrent
// run persisted the same message first.
func inserted(res Result, err error) Result {
	switch {
	case err == nil:
		res.Outcome = OutcomeRecorded
	case errors.Is(err, store.ErrDuplicate):
		res.Outcome = OutcomeAlreadyProcessed
	default:
		return failed(res, err)
	}
	return res
}
