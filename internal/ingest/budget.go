package ingest

import (
	"context"
	"time"
)

const replyAction = "reply"

// ActionStore counts outbound actions.
type ActionStore interface {
	CountActionsWithin(ctx context.Context, start, end time.Time, typ string) (int, error)
	PutAction(ctx context.Context, ts time.Time, typ string) error
}

// Budget caps acknowledgement replies per clock hour and per UTC day. Zero disables a cap.
type Budget struct {
	store      ActionStore
	maxPerHour int
	maxPerDay  int
}

// NewBudget returns nil when both caps are disabled.
func NewBudget(store ActionStore, maxPerHour, maxPerDay int) *Budget {
	if maxPerHour <= 0 && maxPerDay <= 0 {
		return nil
	}
	return &Budget{store: store, maxPerHour: maxPerHour, maxPerDay: maxPerDay}
}

// Allow checks hourly/daily budgets before replying.
func (b *Budget) Allow(ctx context.Context, now time.Time) (bool, error) {
	if b == nil {
		return true, nil
	}
	now = now.UTC()
	startHour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
	startDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if b.maxPerHour > 0 {
		n, err := b.store.CountActionsWithin(ctx, startHour, startHour.Add(time.Hour), replyAction)
		if err != nil {
			return false, err
		}
		if n >= b.maxPerHour {
			return false, nil
		}
	}
	if b.maxPerDay > 0 {
		n, err := b.store.CountActionsWithin(ctx, startDay, startDay.Add(24*time.Hour), replyAction)
		if err != nil {
			return false, err
		}
		if n >= b.maxPerDay {
			return false, nil
		}
	}
	return true, nil
}

// Record logs a sent reply.
func (b *Budget) Record(ctx context.Context, now time.Time) error {
	if b == nil {
		return nil
	}
	return b.store.PutAction(ctx, now.UTC(), replyAction)
}
