package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// Claim outcomes surfaced to the dispatch engine. The engine translates
// these into its caller-facing error taxonomy.
var (
	ErrResponseNotFound    = errors.New("response not found")
	ErrResponseSent        = errors.New("response already sent")
	ErrResponseDispatching = errors.New("response dispatch in progress")

	// ErrDuplicateOpen is the partial unique index on open tasks firing:
	// the mention already has a pending or dispatching response.
	ErrDuplicateOpen = errors.New("open response already exists for tweet")
)

// ResponseStore persists queued and dispatched replies.
type ResponseStore struct {
	db *sql.DB
}

// NewResponseStore creates a response store backed by Postgres
func NewResponseStore(db *sql.DB) *ResponseStore {
	return &ResponseStore{db: db}
}

const responseColumns = `id, original_tweet_id, routing_rule_id, session_id, response_text,
	status, error_message, response_tweet_id, created_at, sent_at`

func scanResponse(row interface{ Scan(...interface{}) error }) (*models.TweetResponse, error) {
	var r models.TweetResponse
	var ruleID, sessionID, errMsg, responseTweetID sql.NullString
	var sentAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.OriginalTweetID, &ruleID, &sessionID, &r.ResponseText,
		&r.Status, &errMsg, &responseTweetID, &r.CreatedAt, &sentAt,
	)
	if err != nil {
		return nil, err
	}
	if ruleID.Valid {
		r.RoutingRuleID = &ruleID.String
	}
	if sessionID.Valid {
		r.SessionID = &sessionID.String
	}
	if errMsg.Valid {
		r.ErrorMessage = &errMsg.String
	}
	if responseTweetID.Valid {
		r.ResponseTweetID = &responseTweetID.String
	}
	if sentAt.Valid {
		t := sentAt.Time
		r.SentAt = &t
	}
	return &r, nil
}

// Create inserts a pending response and returns its id. RuleID is nil for
// operator-composed replies.
func (s *ResponseStore) Create(ctx context.Context, originalTweetID, responseText string, ruleID *string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tweet_responses (id, original_tweet_id, routing_rule_id, response_text, status)
		VALUES ($1, $2, $3, $4, $5)
	`, id, originalTweetID, ruleID, responseText, models.ResponseStatusPending)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", ErrDuplicateOpen
		}
		return "", fmt.Errorf("create response for tweet %s: %w", originalTweetID, err)
	}
	return id, nil
}

// Get returns a response by id, or nil when absent
func (s *ResponseStore) Get(ctx context.Context, id string) (*models.TweetResponse, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+responseColumns+` FROM tweet_responses WHERE id = $1`, id)

	r, err := scanResponse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get response %s: %w", id, err)
	}
	return r, nil
}

// List returns responses, optionally filtered by status, newest first
func (s *ResponseStore) List(ctx context.Context, status string, limit int) ([]models.TweetResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + responseColumns + ` FROM tweet_responses`
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		query += " WHERE status = $1"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var responses []models.TweetResponse
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, *r)
	}
	return responses, rows.Err()
}

// HasOpenResponse reports whether the mention already has a task that is
// pending or mid-dispatch. Sent and failed tasks do not block a new compose.
func (s *ResponseStore) HasOpenResponse(ctx context.Context, originalTweetID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tweet_responses
			WHERE original_tweet_id = $1 AND status IN ($2, $3)
		)
	`, originalTweetID, models.ResponseStatusPending, models.ResponseStatusDispatching).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open response for %s: %w", originalTweetID, err)
	}
	return exists, nil
}

// ClaimForDispatch moves a pending or failed response into the transient
// dispatching state. This compare-and-set is the only guard against two
// callers posting the same reply: exactly one caller wins; losers learn why
// from the returned error.
func (s *ResponseStore) ClaimForDispatch(ctx context.Context, id string) (*models.TweetResponse, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tweet_responses SET status = $1, error_message = NULL
		WHERE id = $2 AND status IN ($3, $4)
		RETURNING `+responseColumns+`
	`, models.ResponseStatusDispatching, id, models.ResponseStatusPending, models.ResponseStatusFailed)

	r, err := scanResponse(row)
	if err == nil {
		return r, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("claim response %s: %w", id, err)
	}

	// Lost the race or bad id; inspect the current status to say which.
	var status string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM tweet_responses WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, ErrResponseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim response %s: %w", id, err)
	}

	switch status {
	case models.ResponseStatusSent:
		return nil, ErrResponseSent
	case models.ResponseStatusDispatching:
		return nil, ErrResponseDispatching
	default:
		return nil, ErrResponseDispatching
	}
}

// MarkSent finalizes a dispatched response as sent
func (s *ResponseStore) MarkSent(ctx context.Context, id, responseTweetID, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tweet_responses
		SET status = $1, response_tweet_id = $2, session_id = $3, sent_at = $4, error_message = NULL
		WHERE id = $5
	`, models.ResponseStatusSent, responseTweetID, sessionID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark response %s sent: %w", id, err)
	}
	return nil
}

// ReleaseStaleDispatching fails every task left mid-dispatch by an earlier
// crash. A live dispatch never spans a restart, so at startup anything still
// dispatching is wedged; failing it makes it re-claimable.
func (s *ResponseStore) ReleaseStaleDispatching(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tweet_responses SET status = $1, error_message = $2
		WHERE status = $3
	`, models.ResponseStatusFailed, "dispatch interrupted by restart", models.ResponseStatusDispatching)
	if err != nil {
		return 0, fmt.Errorf("release stale dispatching tasks: %w", err)
	}
	return result.RowsAffected()
}

// MarkFailed finalizes a dispatched response as failed with error detail
func (s *ResponseStore) MarkFailed(ctx context.Context, id, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tweet_responses SET status = $1, error_message = $2
		WHERE id = $3
	`, models.ResponseStatusFailed, errorMessage, id)
	if err != nil {
		return fmt.Errorf("mark response %s failed: %w", id, err)
	}
	return nil
}
