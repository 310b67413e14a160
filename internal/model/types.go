package model

import "time"

// User represents the subset of X user fields the pipeline keeps.
type User struct {
	ID        string
	Username  string
	Name      string
	CreatedAt time.Time
	// FollowersCount is only known when the user was observed through a
	// following listing (public_metrics).
	FollowersCount *int
}

// Source identifies where a message was read from; it decides how a reply is delivered.
type Source int

const (
	SourceTweet Source = iota
	SourceDirectMessage
)

func (s Source) String() string {
	switch s {
	case SourceDirectMessage:
		return "dm"
	default:
		return "tweet"
	}
}

// Message is a post or a direct message read from the API.
type Message struct {
	ID        string
	Source    Source
	Text      string
	Author    User
	CreatedAt time.Time
	// Set when the post replies to another user; the handle is only known
	// when the user was expanded in the same response.
	InReplyToUserID string
	InReplyToHandle string
	ConversationID  string
}

// VibeRecord states that Sensor received good vibes from Emitter.
type VibeRecord struct {
	TweetID   string
	EmitterID string
	SensorID  string
	CreatedAt time.Time
}

// TransferRecord is a megajoule transfer declared in a single message.
type TransferRecord struct {
	TweetID    string
	SenderID   string
	ReceiverID string
	Amount     int64
	CreatedAt  time.Time
}

// FollowEdge is a follower -> followed relation from a following listing.
type FollowEdge struct {
	FollowerID string
	FollowedID string
}

// VibeScore counts emitter -> sensor paths of length one, two and three.
type VibeScore struct {
	First  int
	Second int
	Third  int
}

// TokenKind selects one of the append-only token histories.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)
