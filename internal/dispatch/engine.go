package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KanishkKundu05/scrapeX/internal/store"
	"github.com/KanishkKundu05/scrapeX/pkg/kafka"
	"github.com/KanishkKundu05/scrapeX/pkg/logging"
	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// DefaultPostTimeout bounds the external post. There is no retry behind it:
// an ambiguous timeout must stay ambiguous rather than risk a double reply.
const DefaultPostTimeout = 30 * time.Second

// ResponseAccess is the slice of the response store dispatch needs.
type ResponseAccess interface {
	Get(ctx context.Context, id string) (*models.TweetResponse, error)
	ClaimForDispatch(ctx context.Context, id string) (*models.TweetResponse, error)
	MarkSent(ctx context.Context, id, responseTweetID, sessionID string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
}

// TweetAccess advances the mention once its reply is posted.
type TweetAccess interface {
	MarkResponded(ctx context.Context, tweetID string) (bool, error)
}

// Poster sends a reply through the external transport. The credential is
// passed per call and never held by the engine.
type Poster interface {
	PostReply(ctx context.Context, cred store.SessionCredential, text, replyToTweetID string) (string, error)
}

// EventPublisher pushes pipeline events; nil disables publishing.
type EventPublisher interface {
	PublishEvent(topic string, event *kafka.Event) error
}

// Engine performs the at-most-once dispatch of queued responses.
type Engine struct {
	responses   ResponseAccess
	tweets      TweetAccess
	sessions    SessionAccess
	selector    *Selector
	poster      Poster
	events      EventPublisher
	logger      logging.Logger
	postTimeout time.Duration
}

// NewEngine creates a dispatch engine. events may be nil.
func NewEngine(responses ResponseAccess, tweets TweetAccess, sessions SessionAccess, poster Poster, events EventPublisher, logger logging.Logger) *Engine {
	return &Engine{
		responses:   responses,
		tweets:      tweets,
		sessions:    sessions,
		selector:    NewSelector(sessions),
		poster:      poster,
		events:      events,
		logger:      logger,
		postTimeout: DefaultPostTimeout,
	}
}

// SetPostTimeout overrides the external post timeout
func (e *Engine) SetPostTimeout(d time.Duration) {
	if d > 0 {
		e.postTimeout = d
	}
}

// Dispatch posts the task's reply and returns the new tweet's id. Session
// and credential are resolved before the claim, so selection failures leave
// the task pending. Once the claim is taken exactly one external post is
// attempted; its outcome is recorded before this function returns.
func (e *Engine) Dispatch(ctx context.Context, taskID, preferredSessionID string) (string, error) {
	task, err := e.responses.Get(ctx, taskID)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", ErrTaskNotFound
	}
	if task.Status == models.ResponseStatusSent {
		return "", ErrAlreadySent
	}

	session, err := e.selector.Select(ctx, preferredSessionID)
	if err != nil {
		return "", err
	}
	cred, err := e.sessions.Credential(ctx, session.ID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", ErrSessionNotFound
	}

	task, err = e.responses.ClaimForDispatch(ctx, taskID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrResponseNotFound):
			return "", ErrTaskNotFound
		case errors.Is(err, store.ErrResponseSent):
			return "", ErrAlreadySent
		case errors.Is(err, store.ErrResponseDispatching):
			return "", ErrAlreadyDispatching
		default:
			return "", err
		}
	}

	// Once the claim is held, terminal state must land even if the caller
	// hangs up mid-post. A canceled request context would otherwise strand
	// the task in dispatching, which nothing re-claims.
	recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer recordCancel()

	postCtx, cancel := context.WithTimeout(ctx, e.postTimeout)
	defer cancel()

	responseTweetID, err := e.poster.PostReply(postCtx, *cred, task.ResponseText, task.OriginalTweetID)
	if err != nil {
		detail := err.Error()
		if markErr := e.responses.MarkFailed(recordCtx, taskID, detail); markErr != nil {
			e.logger.WithError(markErr).WithFields(logging.Fields{
				"task_id": taskID,
			}).Error("Failed to record dispatch failure")
		}
		e.publish(kafka.EventResponseFailed, map[string]interface{}{
			"task_id":  taskID,
			"tweet_id": task.OriginalTweetID,
			"error":    detail,
		})
		return "", fmt.Errorf("post reply for task %s: %w", taskID, err)
	}

	// The reply is live. Local bookkeeping failures from here on are
	// logged, never unwound; response_tweet_id is the audit anchor.
	if err := e.responses.MarkSent(recordCtx, taskID, responseTweetID, session.ID); err != nil {
		e.logger.WithError(err).WithFields(logging.Fields{
			"task_id":           taskID,
			"response_tweet_id": responseTweetID,
		}).Error("Reply posted but task could not be marked sent")
	}
	if err := e.sessions.TouchLastUsed(recordCtx, session.ID); err != nil {
		e.logger.WithError(err).WithFields(logging.Fields{
			"session_id": session.ID,
		}).Warn("Failed to touch session last_used_at")
	}
	if _, err := e.tweets.MarkResponded(recordCtx, task.OriginalTweetID); err != nil {
		e.logger.WithError(err).WithFields(logging.Fields{
			"tweet_id": task.OriginalTweetID,
		}).Warn("Failed to advance mention to responded")
	}

	e.publish(kafka.EventResponseSent, map[string]interface{}{
		"task_id":           taskID,
		"tweet_id":          task.OriginalTweetID,
		"response_tweet_id": responseTweetID,
		"session_id":        session.ID,
	})

	return responseTweetID, nil
}

func (e *Engine) publish(eventType string, data map[string]interface{}) {
	if e.events == nil {
		return
	}
	event := kafka.NewEvent(eventType, "scrapex", data)
	if err := e.events.PublishEvent(kafka.SupportEventsTopic, event); err != nil {
		e.logger.WithError(err).WithFields(logging.Fields{
			"event_type": eventType,
		}).Warn("Failed to publish pipeline event")
	}
}
