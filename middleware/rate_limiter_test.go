package middleware

import "testing"

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(2)
	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst of 2 refused")
	}
	if rl.Allow("a") {
		t.Fatal("third call within the minute allowed")
	}
	if !rl.Allow("b") {
		t.Fatal("keys share a bucket")
	}

	rl.Forget("a")
	if !rl.Allow("a") {
		t.Fatal("Forget did not reset the bucket")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !rl.Allow("a") {
			t.Fatal("disabled limiter refused a call")
		}
	}

	var nilLimiter *RateLimiter
	if !nilLimiter.Allow("a") {
		t.Fatal("nil limiter refused a call")
	}
	nilLimiter.Forget("a")
}
