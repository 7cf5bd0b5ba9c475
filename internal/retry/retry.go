// Package retry executes caller-supplied operations with bounded retries and
// exponential backoff. It is a pure control-flow utility: it owns no state
// beyond one in-flight attempt loop and never inspects operation internals.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pickflow/pickflow/internal/metrics"
)

// ErrInvalidPolicy is returned before any attempt when a policy is malformed.
var ErrInvalidPolicy = errors.New("retry: invalid policy")

// Operation is the unit of work the executor retries. It must be safe to
// re-invoke, since a retryable failure leads to another call.
type Operation func(ctx context.Context) error

// Policy configures one retry loop. A Policy is a plain value and is safe to
// share across concurrent Do calls.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Must be >= 1.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt. Each further
	// retry doubles it, up to MaxBackoff.
	InitialBackoff time.Duration

	// MaxBackoff clamps the backoff growth.
	MaxBackoff time.Duration

	// ShouldRetry classifies a failure. A nil predicate retries everything.
	ShouldRetry func(error) bool
}

// Validate reports whether the policy can drive an attempt loop.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: MaxAttempts must be >= 1, got %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	return nil
}

// Backoff returns the delay inserted after the given failed attempt (1-based):
// min(InitialBackoff * 2^(attempt-1), MaxBackoff).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(2, float64(attempt-1))
	if d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

func (p Policy) retryable(err error) bool {
	if p.ShouldRetry == nil {
		return true
	}
	return p.ShouldRetry(err)
}

// TerminalError is produced once a retryable operation has spent every
// attempt. It wraps the last underlying error.
type TerminalError struct {
	Label       string
	Attempts    int
	MaxAttempts int
	Err         error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s: failed after %d/%d attempts: %v", e.Label, e.Attempts, e.MaxAttempts, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Executor runs operations under a retry policy. Construct one explicitly and
// pass it to callers; it holds no mutable state across invocations, so a
// single instance may serve any number of goroutines.
type Executor struct {
	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Executor. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		log:   log,
		sleep: sleepContext,
	}
}

// Do invokes op under the policy. It returns the first success, the original
// error for a non-retryable failure, ctx.Err() if cancelled during backoff,
// or a *TerminalError once attempts are exhausted. The label is diagnostic
// only and is never interpreted.
func (e *Executor) Do(ctx context.Context, label string, p Policy, op Operation) error {
	if err := p.Validate(); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		metrics.RetryAttempts.WithLabelValues(label).Inc()

		err := op(ctx)
		if err == nil {
			return nil
		}

		// Classify exactly once per failure.
		retryable := p.retryable(err)

		if attempt == p.MaxAttempts {
			metrics.RetryExhausted.WithLabelValues(label).Inc()
			return &TerminalError{
				Label:       label,
				Attempts:    attempt,
				MaxAttempts: p.MaxAttempts,
				Err:         err,
			}
		}
		if !retryable {
			return err
		}

		delay := p.Backoff(attempt)
		e.log.Debug("retrying operation",
			"label", label,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"backoff", delay,
			"error", err,
		)
		if serr := e.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

// DoValue runs an operation producing a value under the executor's retry
// loop. On failure the zero value of T accompanies the error.
func DoValue[T any](
	ctx context.Context,
	e *Executor,
	label string,
	p Policy,
	op func(ctx context.Context) (T, error),
) (T, error) {
	var out T
	err := e.Do(ctx, label, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
