package models

import (
	"time"
)

// Routing status values for an ingested mention. Transitions only ever move
// forward: pending -> routed|skipped, and routed -> responded.
const (
	RoutingStatusPending   = "pending"
	RoutingStatusRouted    = "routed"
	RoutingStatusSkipped   = "skipped"
	RoutingStatusResponded = "responded"
)

// Response task status values. "dispatching" is a transient claim state held
// while the external post is in flight; sent and failed are terminal and
// sent is permanent.
const (
	ResponseStatusPending     = "pending"
	ResponseStatusDispatching = "dispatching"
	ResponseStatusSent        = "sent"
	ResponseStatusFailed      = "failed"
)

// Tweet represents an ingested support mention
type Tweet struct {
	ID           string `json:"id" db:"id"`
	TweetID      string `json:"tweet_id" db:"tweet_id"`
	Text         string `json:"text" db:"text"`
	AuthorID     string `json:"author_id" db:"author_id"`
	AuthorHandle string `json:"author_handle" db:"author_username"`
	AuthorName   string `json:"author_name" db:"author_name"`

	// Timestamps & engagement counters (informational only)
	TweetCreatedAt string `json:"tweet_created_at" db:"tweet_created_at"`
	RetweetCount   int    `json:"retweet_count" db:"retweet_count"`
	LikeCount      int    `json:"like_count" db:"like_count"`
	ReplyCount     int    `json:"reply_count" db:"reply_count"`

	// Webhook metadata
	EventType        string `json:"event_type" db:"event_type"`
	RuleTag          string `json:"rule_tag" db:"rule_tag"`
	WebhookTimestamp int64  `json:"webhook_timestamp" db:"webhook_timestamp"`

	// Routing
	RoutingStatus string  `json:"routing_status" db:"routing_status"`
	MatchedRuleID *string `json:"matched_rule_id,omitempty" db:"matched_rule_id"`

	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}

// RoutingRule maps keyword triggers to a response template. Rules are
// created and edited by an external configuration surface; the pipeline
// treats them as read-only.
type RoutingRule struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Keywords         []string  `json:"keywords" db:"keywords"`
	Priority         int       `json:"priority" db:"priority"`
	ResponseTemplate string    `json:"response_template" db:"response_template"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// TweetResponse represents a queued or dispatched reply to a mention.
// OriginalTweetID is a loose reference: the mention may have been ingested
// before rules existed, or composed against an id we never stored.
type TweetResponse struct {
	ID              string     `json:"id" db:"id"`
	OriginalTweetID string     `json:"original_tweet_id" db:"original_tweet_id"`
	RoutingRuleID   *string    `json:"routing_rule_id,omitempty" db:"routing_rule_id"`
	SessionID       *string    `json:"session_id,omitempty" db:"session_id"`
	ResponseText    string     `json:"response_text" db:"response_text"`
	Status          string     `json:"status" db:"status"`
	ErrorMessage    *string    `json:"error_message,omitempty" db:"error_message"`
	ResponseTweetID *string    `json:"response_tweet_id,omitempty" db:"response_tweet_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	SentAt          *time.Time `json:"sent_at,omitempty" db:"sent_at"`
}

// TwitterSession is an authenticated sending identity. The login cookie is a
// secret: it is never part of this struct and is only reachable through the
// session store's scoped credential accessor.
type TwitterSession struct {
	ID          string    `json:"id" db:"id"`
	SessionName string    `json:"session_name" db:"session_name"`
	Username    string    `json:"username" db:"username"`
	Email       string    `json:"email" db:"email"`
	HasProxy    bool      `json:"has_proxy" db:"has_proxy"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at" db:"last_used_at"`
}
