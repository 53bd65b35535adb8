package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestRetryer(max int) (*Retryer, *[]time.Duration) {
	r := NewRetryer(RetryConfig{Name: "t", MaxAttempts: max, BaseDelay: time.Second, MaxDelay: 3 * time.Second, JitterRange: 0}, nil)
	r.cfg.JitterRange = 0
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestRetryer_SucceedsAfterFailures(t *testing.T) {
	r, slept := newTestRetryer(4)
	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("backoff = %v, want %v", *slept, want)
	}
}

func TestRetryer_Exhausted(t *testing.T) {
	r, slept := newTestRetryer(4)
	boom := errors.New("boom")
	err := r.Execute(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	// 1s, 2s, then capped at 3s
	if got := *slept; len(got) != 3 || got[2] != 3*time.Second {
		t.Errorf("unexpected delays %v", got)
	}
}

func TestRetryer_NonRetryable(t *testing.T) {
	r, _ := newTestRetryer(5)
	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return ErrCircuitOpen
	})
	if err != ErrCircuitOpen || calls != 1 {
		t.Errorf("open circuit must not be retried: err=%v calls=%d", err, calls)
	}
}

func TestRetryer_ContextCancelled(t *testing.T) {
	r, _ := newTestRetryer(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Execute(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
