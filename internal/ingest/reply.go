package ingest

import (
	"context"

	"reputest/internal/model"
)

// Replier delivers an acknowledgement to the author of msg.
type Replier interface {
	Reply(ctx context.Context, msg model.Message, text string) error
}

// Poster is the outbound messaging part of the API client.
type Poster interface {
	Post(ctx context.Context, text, inReplyTo string) (string, error)
	SendDirectMessage(ctx context.Context, recipientID, text string) error
}

// XReplier answers posts with a reply post and direct messages with a direct message.
type XReplier struct {
	Client Poster
}

func (r XReplier) Reply(ctx context.Context, msg model.Message, text string) error {
	if msg.Source == model.SourceDirectMessage {
		return r.Client.SendDirectMessage(ctx, msg.Author.ID, text)
	}
	_, err := r.Client.Post(ctx, text, msg.ID)
	return err
}
