// Package twitterapi is the HTTP client for the twitterapi.io posting
// transport.
package twitterapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/KanishkKundu05/scrapeX/internal/store"
	"github.com/KanishkKundu05/scrapeX/pkg/clients"
	"github.com/KanishkKundu05/scrapeX/pkg/logging"
)

// DefaultBaseURL is the hosted twitterapi.io endpoint
const DefaultBaseURL = "https://api.twitterapi.io"

// APIError is a non-2xx reply from the transport. Body is truncated raw
// response text for the operator's eyes.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitterapi status %d: %s", e.StatusCode, e.Body)
}

// Config for the client. APIKey is required.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client posts tweets and exchanges logins against twitterapi.io. All calls
// run through a circuit breaker so a dead upstream sheds load fast; there is
// no retry anywhere in this package.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *clients.CircuitBreaker
	logger  logging.Logger
}

// NewClient creates a twitterapi.io client
func NewClient(cfg Config, logger logging.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	breaker := clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
		Name:   "twitterapi",
		Logger: logger,
	})

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: clients.DefaultTransport(),
		},
		breaker: breaker,
		logger:  logger,
	}
}

type createTweetRequest struct {
	LoginCookies   string `json:"login_cookies"`
	TweetText      string `json:"tweet_text"`
	Proxy          string `json:"proxy"`
	ReplyToTweetID string `json:"reply_to_tweet_id,omitempty"`
}

type createTweetResponse struct {
	TweetID string `json:"tweet_id"`
	ID      string `json:"id"`
	Message string `json:"msg"`
}

// PostReply posts a reply to an existing tweet and returns the new tweet's
// id. replyToTweetID may be empty for a standalone tweet.
func (c *Client) PostReply(ctx context.Context, cred store.SessionCredential, text, replyToTweetID string) (string, error) {
	reqBody := createTweetRequest{
		LoginCookies:   cred.LoginCookie,
		TweetText:      text,
		Proxy:          cred.Proxy,
		ReplyToTweetID: replyToTweetID,
	}

	var result createTweetResponse
	if err := c.post(ctx, "/twitter/tweet/create", reqBody, &result); err != nil {
		return "", err
	}

	// The upstream has shipped the id under both names.
	tweetID := result.TweetID
	if tweetID == "" {
		tweetID = result.ID
	}
	if tweetID == "" {
		return "", errors.New("tweet created but no tweet id returned")
	}
	return tweetID, nil
}

// LoginRequest is the credential set exchanged for a login cookie.
type LoginRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Proxy      string `json:"proxy"`
	TOTPSecret string `json:"totp_secret,omitempty"`
}

type loginResponse struct {
	LoginCookies string `json:"login_cookies"`
	Message      string `json:"msg"`
}

// Login exchanges account credentials for a session cookie
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	var result loginResponse
	if err := c.post(ctx, "/twitter/auth/login", req, &result); err != nil {
		return "", err
	}
	if result.LoginCookies == "" {
		return "", errors.New("login succeeded but no cookies returned")
	}
	return result.LoginCookies, nil
}

// HealthCheck probes upstream reachability for the health endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("twitterapi unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// BreakerState reports the circuit breaker state for diagnostics
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	return c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("call %s: %w", path, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if err != nil {
			return fmt.Errorf("read %s response: %w", path, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		}

		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil
	})
}
