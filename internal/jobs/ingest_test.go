package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reputest/internal/ingest"
	"reputest/internal/model"
	"reputest/internal/paginate"
)

type searchCall struct {
	Query string
	Since time.Time
	Token string
}

type fakeSource struct {
	mu      sync.Mutex
	pages   map[string]paginate.Page[model.Message]
	dms     map[string]paginate.Page[model.Message]
	calls   []searchCall
	dmCalls int
	err     error
	onFetch func()
}

func (f *fakeSource) SearchRecent(ctx context.Context, query string, since time.Time, token string) (paginate.Page[model.Message], error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{Query: query, Since: since, Token: token})
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return paginate.Page[model.Message]{}, f.err
	}
	return f.pages[query+"|"+token], nil
}

func (f *fakeSource) DirectMessages(ctx context.Context, since time.Time, token string) (paginate.Page[model.Message], error) {
	f.dmCalls++
	return f.dms[token], nil
}

type memCursors map[string]string

func (m memCursors) LoadCursor(_ context.Context, key string) (string, error) { return m[key], nil }
func (m memCursors) SaveCursor(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

type recordingProcessor struct {
	seen []string
	ctxs []error
	fail map[string]bool
}

func (p *recordingProcessor) ProcessBatch(ctx context.Context, msgs []model.Message) ingest.BatchStats {
	stats := ingest.BatchStats{Counts: map[ingest.Outcome]int{}}
	for _, m := range msgs {
		p.seen = append(p.seen, m.ID)
		if !p.fail[m.ID] {
			stats.Counts[ingest.OutcomeRecorded]++
			continue
		}
		stats.Counts[ingest.OutcomeFailed]++
		if stats.OldestFailure.IsZero() || m.CreatedAt.Before(stats.OldestFailure) {
			stats.OldestFailure = m.CreatedAt
		}
	}
	p.ctxs = append(p.ctxs, ctx.Err())
	return stats
}

func msgs(ids ...string) []model.Message {
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Message{ID: id, Source: model.SourceTweet})
	}
	return out
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRunner(src Source, cur CursorStore, proc Processor, opts Options) *Runner {
	r := NewRunner(src, cur, proc, opts, nil)
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestRunOnceProcessesPagesInOrderAndSavesCursor(t *testing.T) {
	src := &fakeSource{pages: map[string]paginate.Page[model.Message]{
		"#gmgv|":   {Items: msgs("3", "2"), NextToken: "t2"},
		"#gmgv|t2": {Items: msgs("1")},
		"@bot|":    {Items: msgs("9")},
	}}
	cur := memCursors{}
	proc := &recordingProcessor{}
	r := newTestRunner(src, cur, proc, Options{Queries: []string{"#gmgv", "@bot"}, Lookback: 6 * time.Hour})

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, []string{"3", "2", "1", "9"}, proc.seen)
	require.Len(t, src.calls, 3)
	assert.Equal(t, fixedNow.Add(-6*time.Hour), src.calls[0].Since)
	assert.Equal(t, fixedNow.Format(time.RFC3339Nano), cur[cursorKey])
	assert.Zero(t, src.dmCalls)
}

func TestRunOnceStartsFromCursorWithOverlap(t *testing.T) {
	src := &fakeSource{}
	last := fixedNow.Add(-time.Hour)
	cur := memCursors{cursorKey: last.Format(time.RFC3339Nano)}
	r := newTestRunner(src, cur, &recordingProcessor{}, Options{Queries: []string{"q"}, Lookback: 6 * time.Hour})

	require.NoError(t, r.RunOnce(context.Background()))
	require.Len(t, src.calls, 1)
	assert.Equal(t, last.Add(-cursorOverlap), src.calls[0].Since)
}

func TestRunOnceStaleCursorIsBoundedByLookback(t *testing.T) {
	src := &fakeSource{}
	cur := memCursors{cursorKey: fixedNow.Add(-72 * time.Hour).Format(time.RFC3339Nano)}
	r := newTestRunner(src, cur, &recordingProcessor{}, Options{Queries: []string{"q"}, Lookback: 6 * time.Hour})

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, fixedNow.Add(-6*time.Hour), src.calls[0].Since)
}

func TestRunOnceFetchErrorAbortsWithoutCursor(t *testing.T) {
	src := &fakeSource{err: errors.New("search: upstream error (status 503)")}
	cur := memCursors{}
	r := newTestRunner(src, cur, &recordingProcessor{}, Options{Queries: []string{"a", "b"}})

	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `search "a"`)
	assert.Len(t, src.calls, 1)
	assert.Empty(t, cur[cursorKey])
}

func TestRunOnceIncludesDirectMessages(t *testing.T) {
	src := &fakeSource{dms: map[string]paginate.Page[model.Message]{
		"": {Items: []model.Message{{ID: "dm-1", Source: model.SourceDirectMessage}}},
	}}
	proc := &recordingProcessor{}
	r := newTestRunner(src, memCursors{}, proc, Options{DirectMessages: true})

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, 1, src.dmCalls)
	assert.Equal(t, []string{"dm-1"}, proc.seen)
}

func TestRunOnceStopsBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{
		pages: map[string]paginate.Page[model.Message]{
			"q|":   {Items: msgs("1"), NextToken: "t2"},
			"q|t2": {Items: msgs("2")},
		},
		// the stop arrives while the first request is in flight
		onFetch: cancel,
	}
	cur := memCursors{}
	proc := &recordingProcessor{}
	r := newTestRunner(src, cur, proc, Options{Queries: []string{"q"}})

	err := r.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"1"}, proc.seen, "the in-flight page is still processed")
	assert.Equal(t, []error{nil}, proc.ctxs)
	assert.Len(t, src.calls, 1)
	assert.Empty(t, cur[cursorKey])
}

func TestFailedMessageStaysInsideNextWindow(t *testing.T) {
	failedAt := fixedNow.Add(-2 * time.Hour)
	page := []model.Message{
		{ID: "ok", Source: model.SourceTweet, CreatedAt: fixedNow.Add(-time.Hour)},
		{ID: "bad", Source: model.SourceTweet, CreatedAt: failedAt},
	}
	src := &fakeSource{pages: map[string]paginate.Page[model.Message]{"q|": {Items: page}}}
	cur := memCursors{}
	proc := &recordingProcessor{fail: map[string]bool{"bad": true}}
	r := newTestRunner(src, cur, proc, Options{Queries: []string{"q"}, Lookback: 6 * time.Hour})

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, failedAt.Format(time.RFC3339Nano), cur[cursorKey])

	// an hour later the next pass still reaches back to the failed message
	r.now = func() time.Time { return fixedNow.Add(time.Hour) }
	require.NoError(t, r.RunOnce(context.Background()))
	require.Len(t, src.calls, 2)
	assert.False(t, src.calls[1].Since.After(failedAt))
	assert.Equal(t, failedAt.Format(time.RFC3339Nano), cur[cursorKey])

	// once nothing fails the cursor advances to the pass start
	proc.fail = nil
	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, fixedNow.Add(time.Hour).Format(time.RFC3339Nano), cur[cursorKey])
}
