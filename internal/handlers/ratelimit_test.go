package handlers

import (
	"testing"
	"time"
)

func TestWebhookRateLimiterPerKey(t *testing.T) {
	rl := NewWebhookRateLimiter(2, time.Minute, time.Minute)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two deliveries must pass")
	}
	if rl.Allow("a") {
		t.Fatal("third delivery in the window must be rejected")
	}
	if !rl.Allow("b") {
		t.Fatal("another key must have its own window")
	}
}

func TestWebhookRateLimiterWindowReset(t *testing.T) {
	rl := NewWebhookRateLimiter(1, 10*time.Millisecond, time.Minute)

	if !rl.Allow("a") {
		t.Fatal("first delivery must pass")
	}
	if rl.Allow("a") {
		t.Fatal("second delivery in window must be rejected")
	}

	time.Sleep(15 * time.Millisecond)
	if !rl.Allow("a") {
		t.Fatal("a new window must admit again")
	}
}

func TestWebhookRateLimiterEmptyKey(t *testing.T) {
	rl := NewWebhookRateLimiter(1, time.Minute, time.Minute)

	if !rl.Allow("") {
		t.Fatal("empty key must be bucketed, not rejected outright")
	}
	if rl.Allow("") {
		t.Fatal("empty keys share one bucket")
	}
}
