package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/KanishkKundu05/scrapeX/internal/dispatch"
	"github.com/KanishkKundu05/scrapeX/internal/routing"
	"github.com/KanishkKundu05/scrapeX/internal/store"
	"github.com/KanishkKundu05/scrapeX/pkg/logging"
	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

type composeResponses struct {
	open    bool
	created int
}

func (c *composeResponses) Create(context.Context, string, string, *string) (string, error) {
	c.created++
	return "resp-1", nil
}

func (c *composeResponses) HasOpenResponse(context.Context, string) (bool, error) {
	return c.open, nil
}

type dispatchResponses struct {
	task *models.TweetResponse
}

func (d *dispatchResponses) Get(context.Context, string) (*models.TweetResponse, error) {
	return d.task, nil
}

func (d *dispatchResponses) ClaimForDispatch(_ context.Context, id string) (*models.TweetResponse, error) {
	if d.task == nil {
		return nil, store.ErrResponseNotFound
	}
	claimed := *d.task
	claimed.Status = models.ResponseStatusDispatching
	return &claimed, nil
}

func (d *dispatchResponses) MarkSent(context.Context, string, string, string) error { return nil }
func (d *dispatchResponses) MarkFailed(context.Context, string, string) error       { return nil }

type respondedTweets struct{}

func (respondedTweets) MarkResponded(context.Context, string) (bool, error) { return true, nil }

type fixedSessions struct {
	active *models.TwitterSession
}

func (s *fixedSessions) Get(context.Context, string) (*models.TwitterSession, error) {
	return nil, nil
}

func (s *fixedSessions) FirstActive(context.Context) (*models.TwitterSession, error) {
	return s.active, nil
}

func (s *fixedSessions) Credential(context.Context, string) (*store.SessionCredential, error) {
	return &store.SessionCredential{LoginCookie: "auth_token=secret"}, nil
}

func (s *fixedSessions) TouchLastUsed(context.Context, string) error { return nil }

type fixedPoster struct {
	id  string
	err error
}

func (p *fixedPoster) PostReply(context.Context, store.SessionCredential, string, string) (string, error) {
	return p.id, p.err
}

func setupResponseRoutes() *gin.Engine {
	r := gin.New()
	r.POST("/api/responses", ComposeResponse)
	r.POST("/api/responses/:id/dispatch", DispatchResponse)
	return r
}

func TestComposeResponseConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logging.NewLogger()
	responses := &composeResponses{open: true}
	Init(Dependencies{
		Logger: logger,
		Router: routing.NewEngine(noopTweets{}, noopRules{}, responses, nil, logger),
	})
	r := setupResponseRoutes()

	body := `{"tweet_id": "100", "response_text": "manual reply"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/responses", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	responses.open = false
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/responses", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "pending" {
		t.Fatalf("composed response must be pending, got %s", resp.Status)
	}
}

func TestComposeResponseValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logging.NewLogger()
	Init(Dependencies{
		Logger: logger,
		Router: routing.NewEngine(noopTweets{}, noopRules{}, &composeResponses{}, nil, logger),
	})
	r := setupResponseRoutes()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/responses", bytes.NewBufferString(`{"tweet_id":"100"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing response_text, got %d", w.Code)
	}
}

func dispatchDeps(task *models.TweetResponse, poster *fixedPoster, active *models.TwitterSession) {
	logger := logging.NewLogger()
	Init(Dependencies{
		Logger: logger,
		Dispatcher: dispatch.NewEngine(
			&dispatchResponses{task: task}, respondedTweets{},
			&fixedSessions{active: active}, poster, nil, logger,
		),
	})
}

func TestDispatchResponseStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	session := &models.TwitterSession{ID: "sess-1", IsActive: true}
	task := &models.TweetResponse{
		ID: "task-1", OriginalTweetID: "100",
		ResponseText: "text", Status: models.ResponseStatusPending,
	}

	t.Run("success", func(t *testing.T) {
		dispatchDeps(task, &fixedPoster{id: "999"}, session)
		r := setupResponseRoutes()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/responses/task-1/dispatch", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp struct {
			ResponseTweetID string `json:"response_tweet_id"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.ResponseTweetID != "999" {
			t.Fatalf("unexpected id: %s", resp.ResponseTweetID)
		}
	})

	t.Run("task not found", func(t *testing.T) {
		dispatchDeps(nil, &fixedPoster{id: "999"}, session)
		r := setupResponseRoutes()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/responses/ghost/dispatch", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("already sent", func(t *testing.T) {
		sent := *task
		sent.Status = models.ResponseStatusSent
		dispatchDeps(&sent, &fixedPoster{id: "999"}, session)
		r := setupResponseRoutes()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/responses/task-1/dispatch", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
	})

	t.Run("no active session", func(t *testing.T) {
		dispatchDeps(task, &fixedPoster{id: "999"}, nil)
		r := setupResponseRoutes()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/responses/task-1/dispatch", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		dispatchDeps(task, &fixedPoster{err: errors.New("boom")}, session)
		r := setupResponseRoutes()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/responses/task-1/dispatch", nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", w.Code)
		}
	})
}
