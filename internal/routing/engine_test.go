package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KanishkKundu05/scrapeX/internal/store"
	"github.com/KanishkKundu05/scrapeX/pkg/logging"
	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

type stubTweets struct {
	byID       map[string]*models.Tweet
	routed     map[string]string
	skipped    map[string]bool
	getErr     error
	markRouted func(tweetID, ruleID string) (bool, error)
}

func newStubTweets(tweets ...*models.Tweet) *stubTweets {
	s := &stubTweets{
		byID:    map[string]*models.Tweet{},
		routed:  map[string]string{},
		skipped: map[string]bool{},
	}
	for _, t := range tweets {
		s.byID[t.TweetID] = t
	}
	return s
}

func (s *stubTweets) GetByTweetID(_ context.Context, tweetID string) (*models.Tweet, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.byID[tweetID], nil
}

func (s *stubTweets) MarkRouted(_ context.Context, tweetID, ruleID string) (bool, error) {
	if s.markRouted != nil {
		return s.markRouted(tweetID, ruleID)
	}
	s.routed[tweetID] = ruleID
	return true, nil
}

func (s *stubTweets) MarkSkipped(_ context.Context, tweetID string) (bool, error) {
	s.skipped[tweetID] = true
	return true, nil
}

type stubRules struct {
	rules []models.RoutingRule
	err   error
}

func (s *stubRules) ListActive(context.Context) ([]models.RoutingRule, error) {
	return s.rules, s.err
}

type createdResponse struct {
	tweetID string
	text    string
	ruleID  *string
}

type stubResponses struct {
	created   []createdResponse
	open      bool
	createErr error
}

func (s *stubResponses) Create(_ context.Context, tweetID, text string, ruleID *string) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = append(s.created, createdResponse{tweetID, text, ruleID})
	return "resp-1", nil
}

func (s *stubResponses) HasOpenResponse(context.Context, string) (bool, error) {
	return s.open, nil
}

func pendingTweet(tweetID, text, handle string) *models.Tweet {
	return &models.Tweet{
		TweetID:       tweetID,
		Text:          text,
		AuthorHandle:  handle,
		AuthorName:    "Test User",
		RoutingStatus: models.RoutingStatusPending,
	}
}

func rule(id, name string, priority int, createdAt time.Time, template string, keywords ...string) models.RoutingRule {
	return models.RoutingRule{
		ID: id, Name: name, Keywords: keywords, Priority: priority,
		ResponseTemplate: template, IsActive: true, CreatedAt: createdAt,
	}
}

func TestRouteFirstMatchWinsByPriority(t *testing.T) {
	base := time.Now()
	tweets := newStubTweets(pendingTweet("100", "My stream is DELAYED and I want a refund", "alice"))
	// Rule order mirrors the store's priority DESC ordering.
	rules := &stubRules{rules: []models.RoutingRule{
		rule("rule-refund", "refunds", 10, base, "Hi {handle}, refunds take 3-5 days.", "refund"),
		rule("rule-delay", "delays", 5, base, "Hi {handle}, sorry about the delay.", "delayed"),
	}}
	responses := &stubResponses{}

	engine := NewEngine(tweets, rules, responses, nil, logging.NewLogger())
	summary := engine.Route(context.Background(), []string{"100"})

	if summary.Routed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if tweets.routed["100"] != "rule-refund" {
		t.Fatalf("higher priority rule must win, got %s", tweets.routed["100"])
	}
	if len(responses.created) != 1 || responses.created[0].text != "Hi alice, refunds take 3-5 days." {
		t.Fatalf("unexpected response: %+v", responses.created)
	}
	if responses.created[0].ruleID == nil || *responses.created[0].ruleID != "rule-refund" {
		t.Fatalf("response must be attributed to the matching rule")
	}
}

func TestRouteCaseInsensitiveMatch(t *testing.T) {
	tweets := newStubTweets(pendingTweet("100", "REFUND me NOW", "alice"))
	rules := &stubRules{rules: []models.RoutingRule{
		rule("rule-1", "refunds", 1, time.Now(), "ok", "Refund"),
	}}
	responses := &stubResponses{}

	engine := NewEngine(tweets, rules, responses, nil, logging.NewLogger())
	if summary := engine.Route(context.Background(), []string{"100"}); summary.Routed != 1 {
		t.Fatalf("case-insensitive keyword must match: %+v", summary)
	}
}

func TestRouteEmptyKeywordRuleIneligible(t *testing.T) {
	tweets := newStubTweets(pendingTweet("100", "anything at all", "alice"))
	rules := &stubRules{rules: []models.RoutingRule{
		rule("rule-empty", "catchall", 100, time.Now(), "hi"),
		rule("rule-blank", "blank", 50, time.Now(), "hi", ""),
	}}
	responses := &stubResponses{}

	engine := NewEngine(tweets, rules, responses, nil, logging.NewLogger())
	summary := engine.Route(context.Background(), []string{"100"})

	if summary.Skipped != 1 || len(responses.created) != 0 {
		t.Fatalf("empty-keyword rules must never match: %+v", summary)
	}
	if !tweets.skipped["100"] {
		t.Fatal("unmatched mention must be marked skipped")
	}
}

func TestRouteNonPendingIsNoOp(t *testing.T) {
	routed := pendingTweet("100", "refund", "alice")
	routed.RoutingStatus = models.RoutingStatusRouted
	tweets := newStubTweets(routed)
	rules := &stubRules{rules: []models.RoutingRule{
		rule("rule-1", "refunds", 1, time.Now(), "ok", "refund"),
	}}
	responses := &stubResponses{}

	engine := NewEngine(tweets, rules, responses, nil, logging.NewLogger())
	summary := engine.Route(context.Background(), []string{"100", "missing"})

	if summary.NoOp != 2 || len(responses.created) != 0 {
		t.Fatalf("routed and unknown mentions must be no-ops: %+v", summary)
	}
}

func TestRouteItemFailureDoesNotAbortPass(t *testing.T) {
	ok := pendingTweet("101", "refund", "bob")
	tweets := newStubTweets(ok)
	tweets.markRouted = func(tweetID, ruleID string) (bool, error) {
		if tweetID == "101" {
			tweets.routed[tweetID] = ruleID
			return true, nil
		}
		return false, errors.New("db down")
	}
	// 100 resolves but its store write fails; 101 must still route.
	tweets.byID["100"] = pendingTweet("100", "refund", "alice")

	rules := &stubRules{rules: []models.RoutingRule{
		rule("rule-1", "refunds", 1, time.Now(), "ok", "refund"),
	}}
	responses := &stubResponses{}

	engine := NewEngine(tweets, rules, responses, nil, logging.NewLogger())
	summary := engine.Route(context.Background(), []string{"100", "101"})

	if summary.Failed != 1 || summary.Routed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRouteLostStatusRaceCreatesNoTask(t *testing.T) {
	tweets := newStubTweets(pendingTweet("100", "refund", "alice"))
	// Another pass already moved the mention out of pending.
	tweets.markRouted = func(string, string) (bool, error) { return false, nil }
	rules := &stubRules{rules: []models.RoutingRule{
		rule("rule-1", "refunds", 1, time.Now(), "ok", "refund"),
	}}
	responses := &stubResponses{}

	engine := NewEngine(tweets, rules, responses, nil, logging.NewLogger())
	summary := engine.Route(context.Background(), []string{"100"})

	if len(responses.created) != 0 {
		t.Fatalf("losing the status race must not queue a task: %+v", responses.created)
	}
	if summary.NoOp != 1 || summary.Routed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRouteExistingOpenTaskCountsAsRouted(t *testing.T) {
	tweets := newStubTweets(pendingTweet("100", "refund", "alice"))
	rules := &stubRules{rules: []models.RoutingRule{
		rule("rule-1", "refunds", 1, time.Now(), "ok", "refund"),
	}}
	// A manual compose queued a task between the status change and the insert.
	responses := &stubResponses{createErr: store.ErrDuplicateOpen}

	engine := NewEngine(tweets, rules, responses, nil, logging.NewLogger())
	summary := engine.Route(context.Background(), []string{"100"})

	if summary.Routed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if tweets.routed["100"] != "rule-1" {
		t.Fatal("mention must stay routed when a task already exists")
	}
}

func TestRouteRuleLoadFailureLeavesBatchPending(t *testing.T) {
	tweets := newStubTweets(pendingTweet("100", "refund", "alice"))
	rules := &stubRules{err: errors.New("db down")}
	responses := &stubResponses{}

	engine := NewEngine(tweets, rules, responses, nil, logging.NewLogger())
	summary := engine.Route(context.Background(), []string{"100", "101"})

	if summary.Failed != 2 || len(responses.created) != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestComposeRejectsOpenTask(t *testing.T) {
	tweets := newStubTweets()
	responses := &stubResponses{open: true}
	engine := NewEngine(tweets, &stubRules{}, responses, nil, logging.NewLogger())

	if _, err := engine.Compose(context.Background(), "100", "manual text"); !errors.Is(err, ErrOpenResponseExists) {
		t.Fatalf("expected ErrOpenResponseExists, got %v", err)
	}

	responses.open = false
	id, err := engine.Compose(context.Background(), "100", "manual text")
	if err != nil || id == "" {
		t.Fatalf("Compose: id=%q err=%v", id, err)
	}
	if responses.created[0].ruleID != nil {
		t.Fatal("manual compose must not be attributed to a rule")
	}
}

func TestComposeMapsDuplicateRowToOpenTask(t *testing.T) {
	// The existence check passes but a concurrent compose inserts first.
	responses := &stubResponses{createErr: store.ErrDuplicateOpen}
	engine := NewEngine(newStubTweets(), &stubRules{}, responses, nil, logging.NewLogger())

	if _, err := engine.Compose(context.Background(), "100", "manual text"); !errors.Is(err, ErrOpenResponseExists) {
		t.Fatalf("expected ErrOpenResponseExists, got %v", err)
	}
}

func TestRenderPlaceholders(t *testing.T) {
	tweet := &models.Tweet{TweetID: "100", AuthorHandle: "alice", AuthorName: "Alice"}
	got := Render("Hi {handle} ({name}), re {keyword} on {tweet_id}. {unknown}", tweet, "refund")
	want := "Hi alice (Alice), re refund on 100. {unknown}"
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}
