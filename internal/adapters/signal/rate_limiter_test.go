package signal

import (
	"testing"
	"time"
)

func TestConnectRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewConnectRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two connects refused")
	}
	if rl.Allow("a") {
		t.Fatal("third connect inside window allowed")
	}
	if !rl.Allow("b") {
		t.Fatal("limit leaked across clients")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("a") {
		t.Fatal("connect after window refused")
	}
}

func TestConnectRateLimiterDisabled(t *testing.T) {
	rl := NewConnectRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !rl.Allow("a") {
			t.Fatal("disabled limiter refused")
		}
	}
}
