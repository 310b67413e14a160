package xclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"reputest/internal/logging"
	"reputest/internal/model"
	"reputest/internal/paginate"
)

// XClient defines the X API v2 calls the pipeline makes.
type XClient interface {
	SearchRecent(ctx context.Context, query string, since time.Time, nextToken string) (paginate.Page[model.Message], error)
	DirectMessages(ctx context.Context, since time.Time, nextToken string) (paginate.Page[model.Message], error)
	Following(ctx context.Context, userID, nextToken string) (paginate.Page[model.User], error)
	LookupByHandle(ctx context.Context, handle string) (model.User, bool, error)
	Post(ctx context.Context, text, inReplyTo string) (string, error)
	SendDirectMessage(ctx context.Context, recipientID, text string) error
}

// HTTPClient implements XClient on top of the authenticated Executor.
type HTTPClient struct {
	baseURL string
	exec    *Executor
	logger  *zap.Logger
}

func NewHTTPClient(baseURL string, exec *Executor, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), exec: exec, logger: logging.OrNop(logger)}
}

const startTimeLayout = "2006-01-02T15:04:05.000Z"

type userObject struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Username      string `json:"username"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics *struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

func (u userObject) toModel() model.User {
	out := model.User{ID: u.ID, Username: u.Username, Name: u.Name}
	if ts, err := time.Parse(time.RFC3339, u.CreatedAt); err == nil {
		out.CreatedAt = ts.UTC()
	}
	if u.PublicMetrics != nil {
		n := u.PublicMetrics.FollowersCount
		out.FollowersCount = &n
	}
	return out
}

func usersByID(users []userObject) map[string]model.User {
	m := make(map[string]model.User, len(users))
	for _, u := range users {
		if u.ID != "" {
			m[u.ID] = u.toModel()
		}
	}
	return m
}

type searchResponse struct {
	Data []struct {
		ID              string `json:"id"`
		Text            string `json:"text"`
		AuthorID        string `json:"author_id"`
		CreatedAt       string `json:"created_at"`
		ConversationID  string `json:"conversation_id"`
		InReplyToUserID string `json:"in_reply_to_user_id"`
	} `json:"data"`
	Includes struct {
		Users []userObject `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// SearchRecent returns one page of posts matching query created after since.
func (c *HTTPClient) SearchRecent(ctx context.Context, query string, since time.Time, nextToken string) (paginate.Page[model.Message], error) {
	var page paginate.Page[model.Message]
	q := url.Values{}
	q.Set("query", query)
	q.Set("start_time", since.UTC().Format(startTimeLayout))
	q.Set("max_results", "100")
	q.Set("expansions", "author_id,referenced_tweets.id,in_reply_to_user_id")
	q.Set("user.fields", "id,username,name,created_at")
	q.Set("tweet.fields", "created_at,conversation_id,in_reply_to_user_id,author_id")
	if nextToken != "" {
		q.Set("next_token", nextToken)
	}
	body, err := c.exec.Do(ctx, "search recent", Request{Method: http.MethodGet, URL: c.baseURL + "/tweets/search/recent?" + q.Encode()})
	if err != nil {
		return page, err
	}
	var raw searchResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return page, fmt.Errorf("search recent: decode: %w", err)
	}
	users := usersByID(raw.Includes.Users)
	for _, d := range raw.Data {
		createdAt, err := time.Parse(time.RFC3339, d.CreatedAt)
		if d.ID == "" || d.AuthorID == "" || err != nil {
			c.logger.Warn("skipping malformed post", zap.String("id", d.ID), zap.String("created_at", d.CreatedAt))
			continue
		}
		author, ok := users[d.AuthorID]
		if !ok {
			author = model.User{ID: d.AuthorID}
		}
		msg := model.Message{
			ID:              d.ID,
			Source:          model.SourceTweet,
			Text:            d.Text,
			Author:          author,
			CreatedAt:       createdAt.UTC(),
			InReplyToUserID: d.InReplyToUserID,
			ConversationID:  d.ConversationID,
		}
		if u, ok := users[d.InReplyToUserID]; ok {
			msg.InReplyToHandle = u.Username
		}
		page.Items = append(page.Items, msg)
	}
	page.NextToken = raw.Meta.NextToken
	return page, nil
}

type dmEventsResponse struct {
	Data []struct {
		ID               string `json:"id"`
		Text             string `json:"text"`
		EventType        string `json:"event_type"`
		CreatedAt        string `json:"created_at"`
		SenderID         string `json:"sender_id"`
		DMConversationID string `json:"dm_conversation_id"`
	} `json:"data"`
	Includes struct {
		Users []userObject `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// DirectMessages returns one page of received direct messages created after since.
func (c *HTTPClient) DirectMessages(ctx context.Context, since time.Time, nextToken string) (paginate.Page[model.Message], error) {
	var page paginate.Page[model.Message]
	q := url.Values{}
	q.Set("max_results", "100")
	q.Set("event_types", "MessageCreate")
	q.Set("dm_event.fields", "id,text,event_type,created_at,sender_id,dm_conversation_id")
	q.Set("user.fields", "id,username,name,created_at")
	q.Set("expansions", "sender_id")
	q.Set("start_time", since.UTC().Format(startTimeLayout))
	if nextToken != "" {
		q.Set("pagination_token", nextToken)
	}
	body, err := c.exec.Do(ctx, "search direct messages", Request{Method: http.MethodGet, URL: c.baseURL + "/dm_events?" + q.Encode()})
	if err != nil {
		return page, err
	}
	var raw dmEventsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return page, fmt.Errorf("search direct messages: decode: %w", err)
	}
	users := usersByID(raw.Includes.Users)
	for _, d := range raw.Data {
		if d.EventType != "" && d.EventType != "MessageCreate" {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, d.CreatedAt)
		if d.ID == "" || d.SenderID == "" || err != nil {
			c.logger.Warn("skipping malformed direct message", zap.String("id", d.ID), zap.String("created_at", d.CreatedAt))
			continue
		}
		if createdAt.Before(since) {
			continue
		}
		author, ok := users[d.SenderID]
		if !ok {
			author = model.User{ID: d.SenderID}
		}
		page.Items = append(page.Items, model.Message{
			ID:             d.ID,
			Source:         model.SourceDirectMessage,
			Text:           d.Text,
			Author:         author,
			CreatedAt:      createdAt.UTC(),
			ConversationID: d.DMConversationID,
		})
	}
	page.NextToken = raw.Meta.NextToken
	return page, nil
}

type followingResponse struct {
	Data []userObject `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

// Following returns one page of accounts followed by userID.
func (c *HTTPClient) Following(ctx context.Context, userID, nextToken string) (paginate.Page[model.User], error) {
	var page paginate.Page[model.User]
	q := url.Values{}
	q.Set("max_results", "1000")
	q.Set("user.fields", "id,username,name,created_at,public_metrics")
	if nextToken != "" {
		q.Set("pagination_token", nextToken)
	}
	u := fmt.Sprintf("%s/users/%s/following?%s", c.baseURL, url.PathEscape(userID), q.Encode())
	body, err := c.exec.Do(ctx, "get following", Request{Method: http.MethodGet, URL: u})
	if err != nil {
		return page, err
	}
	var raw followingResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return page, fmt.Errorf("get following: decode: %w", err)
	}
	for _, d := range raw.Data {
		if d.ID == "" || d.Username == "" {
			c.logger.Warn("skipping malformed user", zap.String("id", d.ID))
			continue
		}
		page.Items = append(page.Items, d.toModel())
	}
	page.NextToken = raw.Meta.NextToken
	return page, nil
}

type lookupResponse struct {
	Data   *userObject `json:"data"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// LookupByHandle returns ok=false when the API knows no user with that handle.
func (c *HTTPClient) LookupByHandle(ctx context.Context, handle string) (model.User, bool, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return model.User{}, false, errors.New("empty handle")
	}
	u := fmt.Sprintf("%s/users/by/username/%s?user.fields=id,name,username,created_at", c.baseURL, url.PathEscape(handle))
	body, err := c.exec.Do(ctx, "lookup user", Request{Method: http.MethodGet, URL: u})
	if err != nil {
		if StatusOf(err) == http.StatusNotFound {
			return model.User{}, false, nil
		}
		return model.User{}, false, err
	}
	var raw lookupResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.User{}, false, fmt.Errorf("lookup user: decode: %w", err)
	}
	if raw.Data == nil || raw.Data.ID == "" {
		if len(raw.Errors) > 0 {
			c.logger.Debug("user lookup returned errors", zap.String("handle", handle), zap.String("title", raw.Errors[0].Title))
		}
		return model.User{}, false, nil
	}
	return raw.Data.toModel(), true, nil
}

type postRequest struct {
	Text  string `json:"text"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
}

type postResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Post publishes text, as a reply when inReplyTo is set, and returns the new post id.
func (c *HTTPClient) Post(ctx context.Context, text, inReplyTo string) (string, error) {
	in := postRequest{Text: text}
	if inReplyTo != "" {
		in.Reply = &struct {
			InReplyToTweetID string `json:"in_reply_to_tweet_id"`
		}{InReplyToTweetID: inReplyTo}
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	body, err := c.exec.Do(ctx, "post tweet", jsonRequest(http.MethodPost, c.baseURL+"/tweets", b))
	if err != nil {
		return "", err
	}
	var raw postResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("post tweet: decode: %w", err)
	}
	return raw.Data.ID, nil
}

// SendDirectMessage sends text to recipientID in their one-to-one conversation.
func (c *HTTPClient) SendDirectMessage(ctx context.Context, recipientID, text string) error {
	b, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/dm_conversations/with/%s/messages", c.baseURL, url.PathEscape(recipientID))
	_, err = c.exec.Do(ctx, "send direct message", jsonRequest(http.MethodPost, u, b))
	return err
}

func jsonRequest(method, u string, body []byte) Request {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return Request{Method: method, URL: u, Header: h, Body: body}
}
