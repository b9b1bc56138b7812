package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nyxforge/concord/pkg/coreerr"
)

func TestDoRetriesRetriableKind(t *testing.T) {
	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, ExponentialBase: 2.0}

	calls := 0
	err := Do(context.Background(), "test", cfg, func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return coreerr.New(coreerr.KindTimeout, "test", errors.New("boom"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryNonRetriableKind(t *testing.T) {
	cfg := DefaultConfig()

	calls := 0
	err := Do(context.Background(), "test", cfg, func(ctx context.Context, attempt int) error {
		calls++
		return coreerr.New(coreerr.KindAuthentication, "test", errors.New("bad key"))
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call for non-retriable kind, got %d", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 2.0}

	calls := 0
	err := Do(context.Background(), "test", cfg, func(ctx context.Context, attempt int) error {
		calls++
		return coreerr.New(coreerr.KindConnection, "test", errors.New("down"))
	})

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != cfg.MaxRetries+1 {
		t.Errorf("expected %d calls, got %d", cfg.MaxRetries+1, calls)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute, 1)

	for i := 0; i < 3; i++ {
		if !b.CanExecute() {
			t.Fatalf("call %d should be admitted before threshold", i)
		}
		b.RecordFailure()
	}

	if b.State() != Open {
		t.Fatalf("expected Open after %d failures, got %v", 3, b.State())
	}
	if b.CanExecute() {
		t.Error("the threshold+1-th call should be rejected without invoking the operation")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond, 1)
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected Open, got %v", b.State())
	}

	b.now = func() time.Time { return time.Now().Add(time.Hour) }

	if b.State() != HalfOpen {
		t.Fatalf("expected HalfOpen after recovery timeout, got %v", b.State())
	}
	if !b.CanExecute() {
		t.Error("half-open should admit one probe")
	}

	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("expected Closed after successful probe, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond, 1)
	b.RecordFailure()
	b.now = func() time.Time { return time.Now().Add(time.Hour) }
	_ = b.State() // force transition to half-open
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected Open after half-open probe failure, got %v", b.State())
	}
}

func TestExecuteRejectsWithCircuitOpen(t *testing.T) {
	b := NewBreaker("test", 1, time.Hour, 1)
	b.RecordFailure()

	err := b.Execute("adapter-x", func() error { return nil })
	if coreerr.KindOf(err) != coreerr.KindCircuitOpen {
		t.Fatalf("expected CircuitOpen, got %v", err)
	}
}
