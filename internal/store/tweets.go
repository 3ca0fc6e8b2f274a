package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// TweetStore persists ingested mentions keyed by their external tweet id.
type TweetStore struct {
	db *sql.DB
}

// NewTweetStore creates a tweet store backed by Postgres
func NewTweetStore(db *sql.DB) *TweetStore {
	return &TweetStore{db: db}
}

const tweetColumns = `id, tweet_id, text, author_id, author_username, author_name,
	tweet_created_at, retweet_count, like_count, reply_count,
	event_type, rule_tag, webhook_timestamp, routing_status, matched_rule_id, ingested_at`

func scanTweet(row interface{ Scan(...interface{}) error }) (*models.Tweet, error) {
	var t models.Tweet
	var matchedRuleID sql.NullString
	err := row.Scan(
		&t.ID, &t.TweetID, &t.Text, &t.AuthorID, &t.AuthorHandle, &t.AuthorName,
		&t.TweetCreatedAt, &t.RetweetCount, &t.LikeCount, &t.ReplyCount,
		&t.EventType, &t.RuleTag, &t.WebhookTimestamp, &t.RoutingStatus, &matchedRuleID, &t.IngestedAt,
	)
	if err != nil {
		return nil, err
	}
	if matchedRuleID.Valid {
		t.MatchedRuleID = &matchedRuleID.String
	}
	return &t, nil
}

// InsertIfAbsent atomically inserts a mention unless its external tweet id is
// already present. The unique constraint on tweet_id makes this safe under
// concurrent webhook deliveries; a conflict is reported as inserted=false,
// never as an error.
func (s *TweetStore) InsertIfAbsent(ctx context.Context, t models.Tweet) (bool, error) {
	id := t.ID
	if id == "" {
		id = uuid.New().String()
	}
	status := t.RoutingStatus
	if status == "" {
		status = models.RoutingStatusPending
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tweets (
			id, tweet_id, text, author_id, author_username, author_name,
			tweet_created_at, retweet_count, like_count, reply_count,
			event_type, rule_tag, webhook_timestamp, routing_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (tweet_id) DO NOTHING
	`,
		id, t.TweetID, t.Text, t.AuthorID, t.AuthorHandle, t.AuthorName,
		t.TweetCreatedAt, t.RetweetCount, t.LikeCount, t.ReplyCount,
		t.EventType, t.RuleTag, t.WebhookTimestamp, status,
	)
	if err != nil {
		return false, fmt.Errorf("insert tweet %s: %w", t.TweetID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert tweet %s: %w", t.TweetID, err)
	}
	return rows == 1, nil
}

// GetByTweetID returns the mention with the given external id, or nil
func (s *TweetStore) GetByTweetID(ctx context.Context, tweetID string) (*models.Tweet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tweetColumns+` FROM tweets WHERE tweet_id = $1`, tweetID)

	t, err := scanTweet(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tweet %s: %w", tweetID, err)
	}
	return t, nil
}

// List returns mentions, optionally filtered by routing status and rule tag,
// newest first.
func (s *TweetStore) List(ctx context.Context, status, ruleTag string, limit int) ([]models.Tweet, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + tweetColumns + ` FROM tweets WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND routing_status = $%d", len(args))
	}
	if ruleTag != "" {
		args = append(args, ruleTag)
		query += fmt.Sprintf(" AND rule_tag = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY ingested_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tweets: %w", err)
	}
	defer rows.Close()

	var tweets []models.Tweet
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tweet: %w", err)
		}
		tweets = append(tweets, *t)
	}
	return tweets, rows.Err()
}

// MarkRouted advances a pending mention to routed, recording the rule that
// matched. A mention not in pending is left untouched (routing is
// idempotent), reported as false.
func (s *TweetStore) MarkRouted(ctx context.Context, tweetID, ruleID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tweets SET routing_status = $1, matched_rule_id = $2
		WHERE tweet_id = $3 AND routing_status = $4
	`, models.RoutingStatusRouted, ruleID, tweetID, models.RoutingStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark tweet %s routed: %w", tweetID, err)
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

// MarkSkipped advances a pending mention to skipped
func (s *TweetStore) MarkSkipped(ctx context.Context, tweetID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tweets SET routing_status = $1
		WHERE tweet_id = $2 AND routing_status = $3
	`, models.RoutingStatusSkipped, tweetID, models.RoutingStatusPending)
	if err != nil {
		return false, fmt.Errorf("mark tweet %s skipped: %w", tweetID, err)
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

// MarkResponded advances a routed mention to responded. The guard keeps the
// status machine forward-only; responding to a skipped or already-responded
// mention is a no-op here.
func (s *TweetStore) MarkResponded(ctx context.Context, tweetID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tweets SET routing_status = $1
		WHERE tweet_id = $2 AND routing_status = $3
	`, models.RoutingStatusResponded, tweetID, models.RoutingStatusRouted)
	if err != nil {
		return false, fmt.Errorf("mark tweet %s responded: %w", tweetID, err)
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}
