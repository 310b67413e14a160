// Package extract classifies message text into at most one intent.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// MaxInputLen bounds the text any matcher sees, in characters.
const MaxInputLen = 500

// Kind tags an Intent.
type Kind int

const (
	NoIntent Kind = iota
	Transfer
	VibeDeclaration
	FollowQuery
	DirectQuery
)

func (k Kind) String() string {
	switch k {
	case Transfer:
		return "transfer"
	case VibeDeclaration:
		return "vibe"
	case FollowQuery:
		return "follow_query"
	case DirectQuery:
		return "direct_query"
	default:
		return "none"
	}
}

// Intent is the structured meaning of a message. Handle is the receiver of
// a transfer, the emitter of a vibe declaration, or the queried account.
type Intent struct {
	Kind   Kind
	Handle string
	Amount int64
}

func (i Intent) String() string {
	switch i.Kind {
	case NoIntent:
		return "none"
	case Transfer:
		return fmt.Sprintf("transfer(%d -> %s)", i.Amount, i.Handle)
	default:
		return fmt.Sprintf("%s(%s)", i.Kind, i.Handle)
	}
}

// Context carries per-message matcher inputs.
type Context struct {
	// ExcludeHandle is never accepted as a vibe emitter, e.g. the reply target.
	ExcludeHandle string
}

// Matcher recognizes one intent shape.
type Matcher interface {
	Kind() Kind
	Match(text string, c Context) (Intent, bool)
}

// Extractor evaluates matchers in order and stops at the first match.
type Extractor struct {
	matchers []Matcher
}

// New returns the standard matcher chain for a bot account handle:
// transfer, vibe declaration, following query, direct query.
func New(botHandle string) *Extractor {
	return NewWith(
		newTransferMatcher(),
		newVibeMatcher(botHandle),
		newFollowQueryMatcher(botHandle),
		newDirectQueryMatcher(botHandle),
	)
}

func NewWith(matchers ...Matcher) *Extractor {
	return &Extractor{matchers: matchers}
}

// Extract returns NoIntent for oversized input or when nothing matches.
func (e *Extractor) Extract(text string, c Context) Intent {
	if utf8.RuneCountInString(text) > MaxInputLen {
		return Intent{Kind: NoIntent}
	}
	text = normalizeWhitespace(text)
	for _, m := range e.matchers {
		if in, ok := m.Match(text, c); ok {
			return in
		}
	}
	return Intent{Kind: NoIntent}
}

const handlePattern = `[A-Za-z0-9_]{1,15}`

type transferMatcher struct {
	re *regexp.Regexp
}

func newTransferMatcher() transferMatcher {
	return transferMatcher{re: regexp.MustCompile(`(?i)\bsend\s+(\d{1,18})\s+#megajoules\s+to\s+@?(` + handlePattern + `)\b`)}
}

func (transferMatcher) Kind() Kind { return Transfer }

func (m transferMatcher) Match(text string, _ Context) (Intent, bool) {
	sm := m.re.FindStringSubmatch(text)
	if sm == nil {
		return Intent{}, false
	}
	amount, err := strconv.ParseInt(sm[1], 10, 64)
	if err != nil || amount <= 0 {
		return Intent{}, false
	}
	return Intent{Kind: Transfer, Handle: sm[2], Amount: amount}, true
}

// vibeStopwords are words that commonly precede the tag without being handles.
var vibeStopwords = newWordSet(
	"a", "all", "an", "and", "are", "at", "be", "big", "but", "by", "for", "from", "gm", "gn", "good",
	"great", "gv", "happy", "have", "here", "hey", "hi", "huge", "i", "in", "is", "it", "just", "love",
	"lots", "me", "more", "much", "my", "of", "on", "or", "our", "out", "positive", "sending", "send",
	"so", "some", "thanks", "thank", "the", "these", "this", "those", "to", "today", "us", "very",
	"via", "vibe", "vibes", "we", "with", "you", "your",
)

type vibeMatcher struct {
	re  *regexp.Regexp
	bot string
}

func newVibeMatcher(botHandle string) vibeMatcher {
	// the leading class keeps "#tag #gmgv" and "foo@bar #gmgv" from yielding a handle
	return vibeMatcher{
		re:  regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9_@#])@?(` + handlePattern + `)\s*#gmgv\b`),
		bot: botHandle,
	}
}

func (vibeMatcher) Kind() Kind { return VibeDeclaration }

func (m vibeMatcher) Match(text string, c Context) (Intent, bool) {
	for _, sm := range m.re.FindAllStringSubmatch(text, -1) {
		h := sm[1]
		if vibeStopwords.has(h) || sameHandle(h, c.ExcludeHandle) || sameHandle(h, m.bot) {
			continue
		}
		return Intent{Kind: VibeDeclaration, Handle: h}, true
	}
	return Intent{}, false
}

type followQueryMatcher struct {
	re *regexp.Regexp
}

func newFollowQueryMatcher(botHandle string) followQueryMatcher {
	return followQueryMatcher{re: regexp.MustCompile(`(?i)^@` + regexp.QuoteMeta(botHandle) + `\s+@?(` + handlePattern + `)\s+following\s*\?$`)}
}

func (followQueryMatcher) Kind() Kind { return FollowQuery }

func (m followQueryMatcher) Match(text string, _ Context) (Intent, bool) {
	sm := m.re.FindStringSubmatch(text)
	if sm == nil {
		return Intent{}, false
	}
	return Intent{Kind: FollowQuery, Handle: sm[1]}, true
}

var queryStopwords = newWordSet(
	"what", "when", "where", "how", "why", "who", "which", "the", "a", "an", "is", "are", "was",
	"were", "be", "been", "being", "have", "has", "had", "do", "does", "did", "will", "would",
	"could", "should", "can", "may", "might", "must", "shall",
)

type directQueryMatcher struct {
	re  *regexp.Regexp
	bot string
}

func newDirectQueryMatcher(botHandle string) directQueryMatcher {
	return directQueryMatcher{
		re:  regexp.MustCompile(`(?i)^@` + regexp.QuoteMeta(botHandle) + `\s+@?(` + handlePattern + `)\s*\?$`),
		bot: botHandle,
	}
}

func (directQueryMatcher) Kind() Kind { return DirectQuery }

func (m directQueryMatcher) Match(text string, _ Context) (Intent, bool) {
	sm := m.re.FindStringSubmatch(text)
	if sm == nil || queryStopwords.has(sm[1]) || sameHandle(sm[1], m.bot) {
		return Intent{}, false
	}
	return Intent{Kind: DirectQuery, Handle: sm[1]}, true
}
