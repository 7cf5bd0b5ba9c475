package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestExecutor(slept *[]time.Duration) *Executor {
	e := New(nil)
	e.sleep = func(ctx context.Context, d time.Duration) error {
		if slept != nil {
			*slept = append(*slept, d)
		}
		return nil
	}
	return e
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	e := newTestExecutor(nil)
	err := e.Do(context.Background(), "op", Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: time.Second}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 invocation, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	var slept []time.Duration
	e := newTestExecutor(&slept)

	p := Policy{MaxAttempts: 4, InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second}
	err := e.Do(context.Background(), "flaky", p, func(ctx context.Context) error {
		calls++
		return boom
	})

	if calls != 4 {
		t.Errorf("expected 4 invocations, got %d", calls)
	}

	var term *TerminalError
	if !errors.As(err, &term) {
		t.Fatalf("expected TerminalError, got %v", err)
	}
	if term.Attempts != 4 || term.MaxAttempts != 4 {
		t.Errorf("expected attempts 4/4, got %d/%d", term.Attempts, term.MaxAttempts)
	}
	if term.Label != "flaky" {
		t.Errorf("expected label flaky, got %s", term.Label)
	}
	if !errors.Is(err, boom) {
		t.Errorf("TerminalError should wrap the last error")
	}

	// Sleeps happen between attempts, never after the last.
	if len(slept) != 3 {
		t.Errorf("expected 3 backoff sleeps, got %d", len(slept))
	}
}

func TestDo_NonRetryableSurfacesOriginal(t *testing.T) {
	calls := 0
	bad := errors.New("invalid config")
	e := newTestExecutor(nil)

	p := Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Second,
		ShouldRetry:    func(error) bool { return false },
	}
	err := e.Do(context.Background(), "op", p, func(ctx context.Context) error {
		calls++
		return bad
	})

	if calls != 1 {
		t.Errorf("expected exactly 1 invocation, got %d", calls)
	}
	if err != bad {
		t.Errorf("expected original error unchanged, got %v", err)
	}
	var term *TerminalError
	if errors.As(err, &term) {
		t.Errorf("non-retryable failure must not be wrapped in TerminalError")
	}
}

func TestDo_RecoversMidRetry(t *testing.T) {
	calls := 0
	e := newTestExecutor(nil)

	p := Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: time.Second}
	err := e.Do(context.Background(), "op", p, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 invocations, got %d", calls)
	}
}

func TestDo_SingleAttemptIsAlwaysTerminal(t *testing.T) {
	// With MaxAttempts=1 there is no room to retry: every failure is
	// terminal, even one the predicate calls non-retryable.
	for _, retryable := range []bool{true, false} {
		calls := 0
		e := newTestExecutor(nil)
		p := Policy{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Second,
			ShouldRetry:    func(error) bool { return retryable },
		}
		err := e.Do(context.Background(), "op", p, func(ctx context.Context) error {
			calls++
			return errors.New("x")
		})

		if calls != 1 {
			t.Errorf("retryable=%v: expected 1 invocation, got %d", retryable, calls)
		}
		var term *TerminalError
		if !errors.As(err, &term) {
			t.Fatalf("retryable=%v: expected TerminalError, got %v", retryable, err)
		}
		if term.Attempts != 1 || term.MaxAttempts != 1 {
			t.Errorf("retryable=%v: expected attempts 1/1, got %d/%d", retryable, term.Attempts, term.MaxAttempts)
		}
	}
}

func TestDo_InvalidPolicy(t *testing.T) {
	e := newTestExecutor(nil)
	calls := 0
	err := e.Do(context.Background(), "op", Policy{MaxAttempts: 0}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	if calls != 0 {
		t.Errorf("invalid policy must fail before any attempt, got %d invocations", calls)
	}
}

func TestDo_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	e := New(nil) // real sleep: cancellation must interrupt it

	p := Policy{MaxAttempts: 3, InitialBackoff: 5 * time.Second, MaxBackoff: 5 * time.Second}
	done := make(chan error, 1)
	go func() {
		done <- e.Do(ctx, "op", p, func(ctx context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		var term *TerminalError
		if errors.As(err, &term) {
			t.Errorf("cancellation must not be conflated with TerminalError")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not abort the backoff sleep")
	}

	if calls != 1 {
		t.Errorf("expected 1 invocation before cancellation, got %d", calls)
	}
}

func TestPolicy_BackoffCurve(t *testing.T) {
	p := Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 800 * time.Millisecond}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDo_BackoffSequencePassedToSleep(t *testing.T) {
	var slept []time.Duration
	e := newTestExecutor(&slept)

	p := Policy{MaxAttempts: 5, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond}
	_ = e.Do(context.Background(), "op", p, func(ctx context.Context) error {
		return errors.New("transient")
	})

	want := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		40 * time.Millisecond,
	}
	if len(slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %d", len(want), len(slept))
	}
	for i, w := range want {
		if slept[i] != w {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], w)
		}
	}
}

func TestDo_ExhaustionScenarioElapsed(t *testing.T) {
	e := New(nil) // real sleeps
	p := Policy{MaxAttempts: 3, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 100 * time.Millisecond}

	start := time.Now()
	err := e.Do(context.Background(), "scenario", p, func(ctx context.Context) error {
		return errors.New("x")
	})
	elapsed := time.Since(start)

	var term *TerminalError
	if !errors.As(err, &term) {
		t.Fatalf("expected TerminalError, got %v", err)
	}
	if term.Attempts != 3 || term.MaxAttempts != 3 {
		t.Errorf("expected attempts 3/3, got %d/%d", term.Attempts, term.MaxAttempts)
	}
	if term.Err == nil || term.Err.Error() != "x" {
		t.Errorf("expected underlying error %q, got %v", "x", term.Err)
	}

	// Two sleeps: 10ms + 20ms.
	if elapsed < 30*time.Millisecond {
		t.Errorf("expected elapsed >= 30ms, got %v", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("elapsed suspiciously long: %v", elapsed)
	}
}

func TestDoValue(t *testing.T) {
	e := newTestExecutor(nil)
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Second}

	calls := 0
	got, err := DoValue(context.Background(), e, "fetch", p, func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	_, err = DoValue(context.Background(), e, "fetch", p, func(ctx context.Context) (int, error) {
		return 0, errors.New("x")
	})
	var term *TerminalError
	if !errors.As(err, &term) {
		t.Errorf("expected TerminalError after exhaustion, got %v", err)
	}
}

func TestDo_NilPredicateRetriesEverything(t *testing.T) {
	calls := 0
	e := newTestExecutor(nil)
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Second}
	_ = e.Do(context.Background(), "op", p, func(ctx context.Context) error {
		calls++
		return errors.New("anything")
	})
	if calls != 3 {
		t.Errorf("nil predicate should retry to exhaustion, got %d invocations", calls)
	}
}
