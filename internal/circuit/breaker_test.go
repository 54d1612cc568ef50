package circuit

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_InitialState(t *testing.T) {
	b := NewBreaker("test", DefaultConfig())
	if !b.CanAllow() {
		t.Error("expected CanAllow to return true in the closed state")
	}
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 3
	b := NewBreaker("test", cfg)

	for i := 0; i < 3; i++ {
		b.RecordFailureWithCategory(errors.New("boom"), ErrorCategoryTransient)
	}
	if b.state != StateOpen {
		t.Fatalf("expected state open after %d failures, got %s", cfg.FailureThreshold, b.state)
	}
	if b.CanAllow() {
		t.Error("expected CanAllow to return false immediately after tripping")
	}
}

func TestBreaker_RecordSuccess_ResetsConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 3
	b := NewBreaker("test", cfg)

	b.RecordFailureWithCategory(errors.New("1"), ErrorCategoryTransient)
	b.RecordFailureWithCategory(errors.New("2"), ErrorCategoryTransient)
	b.RecordSuccess()
	b.RecordFailureWithCategory(errors.New("3"), ErrorCategoryTransient)

	if b.state == StateOpen {
		t.Fatal("expected a reset failure streak not to trip the breaker")
	}
}

func TestBreaker_HalfOpenAfterBackoff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.InitialBackoff = 10 * time.Millisecond
	b := NewBreaker("test", cfg)

	b.RecordFailureWithCategory(errors.New("boom"), ErrorCategoryTransient)
	if b.CanAllow() {
		t.Fatal("expected CanAllow to block before the backoff elapses")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.CanAllow() {
		t.Fatal("expected CanAllow to transition to half-open once the backoff elapses")
	}
	if b.state != StateHalfOpen {
		t.Fatalf("expected half-open state, got %s", b.state)
	}
	if b.CanAllow() {
		t.Error("expected a second probe to be blocked while one is already in flight")
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.SuccessThreshold = 2
	cfg.InitialBackoff = 10 * time.Millisecond
	b := NewBreaker("test", cfg)

	b.RecordFailureWithCategory(errors.New("boom"), ErrorCategoryTransient)
	time.Sleep(20 * time.Millisecond)
	b.CanAllow() // transitions to half-open, claims the probe slot

	b.RecordSuccess()
	if b.state != StateHalfOpen {
		t.Fatalf("expected to stay half-open before the success threshold, got %s", b.state)
	}
	b.RecordSuccess()
	if b.state != StateClosed {
		t.Fatalf("expected to close after %d successes, got %s", cfg.SuccessThreshold, b.state)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.BackoffMultiplier = 2
	b := NewBreaker("test", cfg)

	b.RecordFailureWithCategory(errors.New("boom"), ErrorCategoryTransient)
	firstBackoff := b.currentBackoff
	time.Sleep(20 * time.Millisecond)
	b.CanAllow()

	b.RecordFailureWithCategory(errors.New("still broken"), ErrorCategoryTransient)
	if b.state != StateOpen {
		t.Fatalf("expected a half-open failure to reopen the circuit, got %s", b.state)
	}
	if b.currentBackoff <= firstBackoff {
		t.Fatalf("expected backoff to increase after a half-open failure, got %s (was %s)", b.currentBackoff, firstBackoff)
	}
}

func TestBreaker_InvalidAndFatalDoNotTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	b := NewBreaker("test", cfg)

	b.RecordFailureWithCategory(errors.New("invalid request"), ErrorCategoryInvalid)
	b.RecordFailureWithCategory(errors.New("fatal"), ErrorCategoryFatal)

	if b.state != StateClosed {
		t.Fatalf("expected non-transient errors not to trip the breaker, got %s", b.state)
	}
}

func TestBreaker_RateLimitTripsImmediately(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 10
	b := NewBreaker("test", cfg)

	b.RecordFailureWithCategory(errors.New("429"), ErrorCategoryRateLimit)
	if b.state != StateOpen {
		t.Fatalf("expected a rate-limit error to trip immediately regardless of threshold, got %s", b.state)
	}
}

func TestNewBreaker_DefaultsApplied(t *testing.T) {
	b := NewBreaker("test", Config{})
	if b.config.FailureThreshold != 3 || b.config.SuccessThreshold != 2 {
		t.Fatalf("expected zero-value Config to fall back to sane defaults, got %+v", b.config)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
