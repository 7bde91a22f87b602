package spacetraveling

import (
	"testing"
	"time"
)

func TestRateLimiterBlocksAfterMax(t *testing.T) {
	limiter := NewRateLimiter(2, 200*time.Millisecond)
	defer limiter.Close()
	ip := "203.0.113.10"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first request to be allowed")
	}
	if !limiter.Allow(ip) {
		t.Fatalf("expected second request to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected third request to be blocked")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewRateLimiter(1, 150*time.Millisecond)
	defer limiter.Close()
	ip := "203.0.113.20"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first request to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected second request to be blocked")
	}

	time.Sleep(200 * time.Millisecond)
	if !limiter.Allow(ip) {
		t.Fatalf("expected request after window to be allowed")
	}
}

func TestRateLimiterIsPerKey(t *testing.T) {
	limiter := NewRateLimiter(1, 200*time.Millisecond)
	defer limiter.Close()

	if !limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be allowed")
	}
	if !limiter.Allow("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
}

func TestRateLimiterCloseIsIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second)
	limiter.Close()
	limiter.Close()
}
