package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_AllowsUpToMax(t *testing.T) {
	l := New(time.Minute)
	for i := 1; i <= 3; i++ {
		d := l.Allow("k", 3)
		if !d.Allowed {
			t.Fatalf("call %d: expected allowed, got rejected", i)
		}
	}
	d := l.Allow("k", 3)
	if d.Allowed {
		t.Fatal("4th call within window should be rejected")
	}
}

func TestLimiter_ResetsAfterWindow(t *testing.T) {
	l := New(10 * time.Millisecond)
	l.Allow("k", 1)
	d := l.Allow("k", 1)
	if d.Allowed {
		t.Fatal("2nd call should be rejected within window")
	}

	time.Sleep(20 * time.Millisecond)
	d = l.Allow("k", 1)
	if !d.Allowed {
		t.Fatal("call after window elapsed should be allowed")
	}
	if d.Count != 1 {
		t.Fatalf("count after reset = %d, want 1", d.Count)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(time.Minute)
	l.Allow("a", 1)
	d := l.Allow("b", 1)
	if !d.Allowed {
		t.Fatal("distinct key should have its own bucket")
	}
}

func TestRetryAfterSeconds_RoundsUp(t *testing.T) {
	now := time.Now()
	d := Decision{ResetAt: now.Add(1500 * time.Millisecond)}
	got := RetryAfterSeconds(d, now)
	if got != 2 {
		t.Fatalf("RetryAfterSeconds = %d, want 2", got)
	}
}
