package ingest

import (
	"fmt"

	"reputest/internal/extract"
	"reputest/internal/model"
)

// Outcome is what processing decided for one message.
type Outcome int

const (
	// OutcomeSkipped: no intent, the bot's own message, or a self-declaration.
	OutcomeSkipped Outcome = iota
	// OutcomeAlreadyProcessed: an earlier poll (or a concurrent run) handled the message.
	OutcomeAlreadyProcessed
	// OutcomeNotFound: the counterparty handle does not exist.
	OutcomeNotFound
	// OutcomeDuplicatePair: vibes between the pair were declared by another message.
	OutcomeDuplicatePair
	// OutcomeRecorded: a vibe or transfer record was inserted.
	OutcomeRecorded
	// OutcomeAnswered: a query was answered.
	OutcomeAnswered
	// OutcomeFailed: a transport, auth or store error; the message is retried on a later poll.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAlreadyProcessed:
		return "already_processed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeDuplicatePair:
		return "duplicate_pair"
	case OutcomeRecorded:
		return "recorded"
	case OutcomeAnswered:
		return "answered"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result carries the decision and the facts needed to acknowledge it.
type Result struct {
	Outcome      Outcome
	Intent       extract.Intent
	Counterparty model.User
	// OriginalID is the message that first declared a duplicate pair.
	OriginalID string
	Score      model.VibeScore
	// Following answers: accounts listed and how many of them sent the asker vibes.
	FollowCount    int
	FollowEmitters int
	Err            error
}

const statusURL = "https://twitter.com/i/status/"

// ReplyText is the acknowledgement for r; ok is false when nothing is sent.
func ReplyText(r Result) (text string, ok bool) {
	switch r.Outcome {
	case OutcomeNotFound:
		return fmt.Sprintf("I couldn't find a Twitter user with the handle '%s'. Please check the spelling and try again.", r.Intent.Handle), true
	case OutcomeDuplicatePair:
		if r.OriginalID == "" {
			return "You've already declared these vibes!", true
		}
		return "You've already declared these vibes! See your previous tweet: " + statusURL + r.OriginalID, true
	case OutcomeRecorded:
		switch r.Intent.Kind {
		case extract.Transfer:
			return fmt.Sprintf("Your %d megajoules to %s have been noted.", r.Intent.Amount, r.Intent.Handle), true
		case extract.VibeDeclaration:
			return fmt.Sprintf("Your good vibes from %s have been noted.", r.Counterparty.Username), true
		}
	case OutcomeAnswered:
		switch r.Intent.Kind {
		case extract.FollowQuery:
			return fmt.Sprintf("@%s follows %d accounts. %d of them have sent you good vibes.",
				r.Counterparty.Username, r.FollowCount, r.FollowEmitters), true
		case extract.DirectQuery:
			return fmt.Sprintf("Your vibes with @%s: 1st degree %d, 2nd degree %d, 3rd degree %d.",
				r.Counterparty.Username, r.Score.First, r.Score.Second, r.Score.Third), true
		}
	}
	return "", false
}
