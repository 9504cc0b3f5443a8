// internal/utils/rate_limiter_test.go
package utils

import "testing"

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("Expected burst of two to be allowed")
	}
	if rl.Allow() {
		t.Error("Expected third request to be limited")
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatalf("Expected unlimited limiter to allow request %d", i)
		}
	}
}
