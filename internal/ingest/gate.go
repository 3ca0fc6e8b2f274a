package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/KanishkKundu05/scrapeX/pkg/logging"
	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// ErrMalformedPayload means the body does not have the webhook batch shape.
// The webhook handler treats this as a verification ping, not a failure:
// upstream sends shapeless probes when registering the endpoint URL.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Payload is the inbound webhook batch.
type Payload struct {
	EventType string      `json:"event_type"`
	RuleID    string      `json:"rule_id"`
	RuleTag   string      `json:"rule_tag"`
	Timestamp int64       `json:"timestamp"`
	Tweets    []TweetItem `json:"tweets"`
}

// TweetItem is one mention inside a webhook batch.
type TweetItem struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	CreatedAt    string `json:"createdAt"`
	RetweetCount int    `json:"retweetCount"`
	LikeCount    int    `json:"likeCount"`
	ReplyCount   int    `json:"replyCount"`
	Author       struct {
		ID       string `json:"id"`
		UserName string `json:"userName"`
		Name     string `json:"name"`
	} `json:"author"`
}

// Result reports what a batch admission did.
type Result struct {
	AdmittedIDs []string `json:"-"`
	Inserted    int      `json:"inserted"`
	Skipped     int      `json:"skipped"`
	Malformed   int      `json:"malformed"`
}

// TweetInserter is the slice of the tweet store the gate needs.
type TweetInserter interface {
	InsertIfAbsent(ctx context.Context, t models.Tweet) (bool, error)
}

// Gate admits webhook batches into the mention store exactly once per
// external tweet id.
type Gate struct {
	tweets TweetInserter
	logger logging.Logger
}

// NewGate creates an ingestion gate
func NewGate(tweets TweetInserter, logger logging.Logger) *Gate {
	return &Gate{tweets: tweets, logger: logger}
}

// Parse decides whether a body is a real batch. The threshold is all five
// top-level fields present with tweets an array; anything short of that is
// ErrMalformedPayload.
func Parse(body []byte) (*Payload, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, ErrMalformedPayload
	}
	for _, key := range []string{"event_type", "rule_id", "rule_tag", "timestamp", "tweets"} {
		if _, ok := probe[key]; !ok {
			return nil, ErrMalformedPayload
		}
	}
	var tweets []json.RawMessage
	if err := json.Unmarshal(probe["tweets"], &tweets); err != nil {
		return nil, ErrMalformedPayload
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrMalformedPayload
	}
	return &payload, nil
}

// Admit validates and stores a batch. Invalid elements are counted and
// skipped; duplicates (by external tweet id) are counted as skipped. Only a
// store failure is an error, and it aborts the batch mid-way with whatever
// was already admitted staying admitted.
func (g *Gate) Admit(ctx context.Context, payload *Payload) (Result, error) {
	var result Result

	for _, item := range payload.Tweets {
		if item.ID == "" || item.Text == "" || item.Author.ID == "" || item.Author.UserName == "" {
			result.Malformed++
			g.logger.WithFields(logging.Fields{
				"tweet_id": item.ID,
				"rule_tag": payload.RuleTag,
			}).Warn("Dropping malformed tweet in webhook batch")
			continue
		}

		inserted, err := g.tweets.InsertIfAbsent(ctx, models.Tweet{
			TweetID:          item.ID,
			Text:             item.Text,
			AuthorID:         item.Author.ID,
			AuthorHandle:     item.Author.UserName,
			AuthorName:       item.Author.Name,
			TweetCreatedAt:   item.CreatedAt,
			RetweetCount:     item.RetweetCount,
			LikeCount:        item.LikeCount,
			ReplyCount:       item.ReplyCount,
			EventType:        payload.EventType,
			RuleTag:          payload.RuleTag,
			WebhookTimestamp: payload.Timestamp,
		})
		if err != nil {
			return result, err
		}
		if inserted {
			result.Inserted++
			result.AdmittedIDs = append(result.AdmittedIDs, item.ID)
		} else {
			result.Skipped++
		}
	}

	return result, nil
}
