package routing

import (
	"context"
	"errors"

	"github.com/KanishkKundu05/scrapeX/internal/store"
	"github.com/KanishkKundu05/scrapeX/pkg/kafka"
	"github.com/KanishkKundu05/scrapeX/pkg/logging"
	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// ErrOpenResponseExists means the mention already has a pending or
// in-flight response task, so composing another would double-reply.
var ErrOpenResponseExists = errors.New("open response task exists for tweet")

// TweetAccess is the slice of the tweet store routing needs.
type TweetAccess interface {
	GetByTweetID(ctx context.Context, tweetID string) (*models.Tweet, error)
	MarkRouted(ctx context.Context, tweetID, ruleID string) (bool, error)
	MarkSkipped(ctx context.Context, tweetID string) (bool, error)
}

// RuleAccess reads the active rule set.
type RuleAccess interface {
	ListActive(ctx context.Context) ([]models.RoutingRule, error)
}

// ResponseAccess creates response tasks and checks for open ones.
type ResponseAccess interface {
	Create(ctx context.Context, originalTweetID, responseText string, ruleID *string) (string, error)
	HasOpenResponse(ctx context.Context, originalTweetID string) (bool, error)
}

// EventPublisher pushes pipeline events; nil disables publishing.
type EventPublisher interface {
	PublishEvent(topic string, event *kafka.Event) error
}

// Summary reports what a routing pass did.
type Summary struct {
	Routed  int `json:"routed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	NoOp    int `json:"noop"`
}

// Engine matches pending mentions against keyword rules and queues
// responses for the ones that hit.
type Engine struct {
	tweets    TweetAccess
	rules     RuleAccess
	responses ResponseAccess
	events    EventPublisher
	logger    logging.Logger
}

// NewEngine creates a routing engine. events may be nil.
func NewEngine(tweets TweetAccess, rules RuleAccess, responses ResponseAccess, events EventPublisher, logger logging.Logger) *Engine {
	return &Engine{tweets: tweets, rules: rules, responses: responses, events: events, logger: logger}
}

// Route evaluates each mention against the active rule set. It never fails
// the whole pass: a per-item failure is logged, counted, and the item stays
// pending for a later retry. Non-pending mentions are no-ops, which makes
// re-triggering the same ids harmless.
func (e *Engine) Route(ctx context.Context, tweetIDs []string) Summary {
	var summary Summary

	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		e.logger.WithError(err).Error("Failed to load routing rules, leaving batch pending")
		summary.Failed = len(tweetIDs)
		return summary
	}

	for _, tweetID := range tweetIDs {
		outcome, err := e.routeOne(ctx, tweetID, rules)
		if err != nil {
			summary.Failed++
			e.logger.WithError(err).WithFields(logging.Fields{
				"tweet_id": tweetID,
			}).Error("Routing failed, mention stays pending")
			continue
		}
		switch outcome {
		case outcomeRouted:
			summary.Routed++
		case outcomeSkipped:
			summary.Skipped++
		default:
			summary.NoOp++
		}
	}

	return summary
}

type routeOutcome int

const (
	outcomeNoOp routeOutcome = iota
	outcomeRouted
	outcomeSkipped
)

func (e *Engine) routeOne(ctx context.Context, tweetID string, rules []models.RoutingRule) (routeOutcome, error) {
	tweet, err := e.tweets.GetByTweetID(ctx, tweetID)
	if err != nil {
		return outcomeNoOp, err
	}
	if tweet == nil || tweet.RoutingStatus != models.RoutingStatusPending {
		return outcomeNoOp, nil
	}

	// First rule in priority order with a keyword hit wins.
	for _, rule := range rules {
		keyword := matchKeyword(tweet.Text, rule.Keywords)
		if keyword == "" {
			continue
		}

		// Win the status transition before queueing the task. Two
		// concurrent passes over the same id both reach here; only the
		// CAS winner creates a task, so one mention never gets two.
		changed, err := e.tweets.MarkRouted(ctx, tweet.TweetID, rule.ID)
		if err != nil {
			return outcomeNoOp, err
		}
		if !changed {
			return outcomeNoOp, nil
		}

		text := Render(rule.ResponseTemplate, tweet, keyword)
		ruleID := rule.ID
		responseID, err := e.responses.Create(ctx, tweet.TweetID, text, &ruleID)
		if err != nil {
			if errors.Is(err, store.ErrDuplicateOpen) {
				// A manual compose got there first; its task serves
				// the mention.
				return outcomeRouted, nil
			}
			// The mention is routed but taskless. Manual compose can
			// still queue a reply for it.
			e.logger.WithError(err).WithFields(logging.Fields{
				"tweet_id": tweet.TweetID,
				"rule_id":  rule.ID,
			}).Error("Mention routed but response could not be queued")
			return outcomeNoOp, err
		}

		e.publish(kafka.EventResponseRouted, map[string]interface{}{
			"tweet_id":    tweet.TweetID,
			"rule_id":     rule.ID,
			"rule_name":   rule.Name,
			"keyword":     keyword,
			"response_id": responseID,
		})
		return outcomeRouted, nil
	}

	if _, err := e.tweets.MarkSkipped(ctx, tweet.TweetID); err != nil {
		return outcomeNoOp, err
	}
	return outcomeSkipped, nil
}

// Compose queues a manually written response with no rule attribution. It
// refuses when the mention already has an open task. The pre-check gives a
// clean answer on the common path; the store's partial unique index closes
// the window between check and insert.
func (e *Engine) Compose(ctx context.Context, tweetID, responseText string) (string, error) {
	open, err := e.responses.HasOpenResponse(ctx, tweetID)
	if err != nil {
		return "", err
	}
	if open {
		return "", ErrOpenResponseExists
	}

	id, err := e.responses.Create(ctx, tweetID, responseText, nil)
	if errors.Is(err, store.ErrDuplicateOpen) {
		return "", ErrOpenResponseExists
	}
	return id, err
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
