package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)

	for i := 0; i < 100; i++ {
		if !limiter.Allow("llm:gemini") {
			t.Fatalf("expected unlimited limiter to allow request %d", i)
		}
	}
}

func TestLimiter_WaitURL(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.WaitURL(ctx, "http://example.com/foo"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different domain should also work
	if err := limiter.WaitURL(ctx, "http://google.com"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	if err := limiter.WaitURL(ctx, "not a url"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "llm:gemini"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}
	if limiter.Allow("llm:gemini") {
		t.Error("expected provider key to be exhausted")
	}
	if !limiter.Allow("llm:openai") {
		t.Error("expected other provider key to be allowed")
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := limiter.Wait(ctx, "slow"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	cancel()
	if err := limiter.Wait(ctx, "slow"); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	start := time.Now()
	err := limiter.WaitWithDelay(ctx, "http://example.com", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}

	duration := time.Since(start)
	if duration < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", duration)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()
	url := "http://example.com"

	if err := limiter.WaitURL(ctx, url); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst 1 means the token is consumed
	if limiter.AllowURL(url) {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	if !limiter.AllowURL("http://other.com") {
		t.Errorf("expected allow for other domain")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	domain := "slow.com"

	limiter.SetRate(domain, 0.1, 1)

	if !limiter.AllowURL("http://" + domain) {
		t.Errorf("first request should pass")
	}
	if limiter.AllowURL("http://" + domain) {
		t.Errorf("second request should fail")
	}
	if !limiter.AllowURL("http://fast.com") {
		t.Errorf("other domain should pass")
	}
}

func TestExtractDomain(t *testing.T) {
	domain, err := extractDomain("http://example.com/foo")
	if err != nil {
		t.Fatalf("extractDomain failed: %v", err)
	}
	if domain != "example.com" {
		t.Errorf("expected example.com, got %s", domain)
	}

	_, err = extractDomain("::invalid")
	if err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
