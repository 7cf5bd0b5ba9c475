// Package agents holds the platform's background workers. Each agent is a
// ticker loop around one responsibility: ingest odds, grade picks, sweep for
// integrity problems, advance onboarding, drain the notification outbox.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pickflow/pickflow/internal/metrics"
)

// Agent is a long-running worker with a graceful stop.
type Agent interface {
	// Name identifies the agent in logs, metrics and health reports.
	Name() string

	// Start runs the agent loop until the context is cancelled or Stop is
	// called. It blocks.
	Start(ctx context.Context) error

	// Stop signals the loop to exit.
	Stop() error
}

// HealthReporting exposes an agent's liveness to the health monitor.
type HealthReporting interface {
	Health() Status
}

// Status is one agent's health snapshot.
type Status struct {
	Agent             string    `json:"agent"`
	LastSuccess       time.Time `json:"last_success"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastError         string    `json:"last_error,omitempty"`
}

// NewID returns a fresh row id.
func NewID() string {
	return uuid.New().String()
}

// Tracker records tick outcomes for health reporting.
type Tracker struct {
	mu          sync.RWMutex
	lastSuccess time.Time
	consecutive int
	lastError   string
}

func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSuccess = time.Now()
	t.consecutive = 0
	t.lastError = ""
}

func (t *Tracker) RecordError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutive++
	t.lastError = err.Error()
}

// Snapshot returns the current health view for an agent name.
func (t *Tracker) Snapshot(name string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{
		Agent:             name,
		LastSuccess:       t.lastSuccess,
		ConsecutiveErrors: t.consecutive,
		LastError:         t.lastError,
	}
}

// Loop drives an agent's tick on an interval until the context is done or
// Halt is called. One tick failure never kills the loop.
type Loop struct {
	name     string
	interval time.Duration
	running  atomic.Bool
	stop     chan struct{}
	log      *slog.Logger
}

// NewLoop creates a named ticker loop.
func NewLoop(name string, interval time.Duration, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		name:     name,
		interval: interval,
		stop:     make(chan struct{}),
		log:      log.With("agent", name),
	}
}

// Run blocks, invoking tick on every interval and recording the outcome.
func (l *Loop) Run(ctx context.Context, tracker *Tracker, tick func(ctx context.Context) error) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("agent %s already running", l.name)
	}
	defer l.running.Store(false)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.stop:
			return nil
		case <-ticker.C:
			start := time.Now()
			err := tick(ctx)
			metrics.AgentTickDuration.WithLabelValues(l.name).Observe(time.Since(start).Seconds())

			if err != nil {
				tracker.RecordError(err)
				l.log.Error("tick failed", "error", err)
				continue
			}
			tracker.RecordSuccess()
		}
	}
}

// Halt signals the loop to exit.
func (l *Loop) Halt() {
	if l.running.Load() {
		close(l.stop)
	}
}
