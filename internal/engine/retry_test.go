package engine

import (
	"testing"
	"time"
)

func TestDecideFatalKinds(t *testing.T) {
	policy := Policy{MaxRetries: 3}
	for _, kind := range []ErrorKind{KindFileExists, KindFilesystemWrite, KindCancelled} {
		decision := policy.Decide(RetryContext{Attempt: 1, Kind: kind})
		if decision.Retry {
			t.Errorf("kind %v: expected give-up on first attempt", kind)
		}
	}
}

func TestDecideTransientKinds(t *testing.T) {
	policy := Policy{MaxRetries: 3}
	for _, kind := range []ErrorKind{KindConnect, KindTimeout, KindHTTPStatus, KindStreamInterrupted} {
		decision := policy.Decide(RetryContext{Attempt: 1, Kind: kind})
		if !decision.Retry {
			t.Errorf("kind %v: expected retry on first attempt", kind)
		}
	}
}

func TestDecideExhaustsAtMaxRetries(t *testing.T) {
	policy := Policy{MaxRetries: 3}
	if d := policy.Decide(RetryContext{Attempt: 2, Kind: KindTimeout}); !d.Retry {
		t.Error("attempt 2 of 3 should retry")
	}
	if d := policy.Decide(RetryContext{Attempt: 3, Kind: KindTimeout}); d.Retry {
		t.Error("attempt 3 of 3 should give up")
	}
}

func TestDecideBackoffGrowsAndCaps(t *testing.T) {
	policy := Policy{MaxRetries: 10, Base: 100 * time.Millisecond, Cap: 500 * time.Millisecond}
	var previous time.Duration
	for attempt := 1; attempt <= 3; attempt++ {
		decision := policy.Decide(RetryContext{Attempt: attempt, Kind: KindConnect})
		if !decision.Retry {
			t.Fatalf("attempt %d: expected retry", attempt)
		}
		if decision.Backoff < previous {
			t.Errorf("attempt %d: backoff %v shrank below %v", attempt, decision.Backoff, previous)
		}
		previous = decision.Backoff
	}
	decision := policy.Decide(RetryContext{Attempt: 9, Kind: KindConnect})
	if decision.Backoff != 500*time.Millisecond {
		t.Errorf("expected backoff capped at 500ms, got %v", decision.Backoff)
	}
}
