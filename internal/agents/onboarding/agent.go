// Package onboarding advances users through the signup funnel. A user moves
// created -> verified -> funded -> active, one step per pass, and only when
// the prerequisite for the next step is met on the user record.
package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pickflow/pickflow/internal/agents"
	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
	"github.com/pickflow/pickflow/internal/retry"
)

// stepLockTTL bounds how long one agent instance owns a user's transition.
const stepLockTTL = 30 * time.Second

// StepLocker serializes a user's step transition across agent instances.
type StepLocker interface {
	AcquireStepLock(ctx context.Context, userID, step string, ttl time.Duration) (bool, error)
	ReleaseStepLock(ctx context.Context, userID, step string) error
}

// Config holds onboarding agent dependencies.
type Config struct {
	Users    storage.UserRepository
	Composer *agents.Composer
	Executor *retry.Executor
	Policy   retry.Policy
	Locks    StepLocker // optional
	Interval time.Duration
	Log      *slog.Logger
}

// Agent walks the funnel on an interval.
type Agent struct {
	cfg     Config
	loop    *agents.Loop
	tracker agents.Tracker
}

// New creates the onboarding agent.
func New(cfg Config) *Agent {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Agent{
		cfg:  cfg,
		loop: agents.NewLoop("onboarding", cfg.Interval, cfg.Log),
	}
}

func (a *Agent) Name() string { return "onboarding" }

// Start runs the funnel loop. Blocks until ctx is done or Stop is called.
func (a *Agent) Start(ctx context.Context) error {
	return a.loop.Run(ctx, &a.tracker, a.tick)
}

// Stop signals the loop to exit.
func (a *Agent) Stop() error {
	a.loop.Halt()
	return nil
}

// Health reports the agent's last tick outcome.
func (a *Agent) Health() agents.Status {
	return a.tracker.Snapshot(a.Name())
}

func (a *Agent) tick(ctx context.Context) error {
	// Terminal step last so a user advanced this tick is not advanced again.
	for _, step := range []domain.OnboardingStep{domain.StepFunded, domain.StepVerified, domain.StepCreated} {
		if err := a.advanceStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) advanceStep(ctx context.Context, step domain.OnboardingStep) error {
	users, err := retry.DoValue(ctx, a.cfg.Executor, "onboarding.list_users", a.cfg.Policy,
		func(ctx context.Context) ([]*domain.User, error) {
			return a.cfg.Users.ListByStep(ctx, step)
		})
	if err != nil {
		return fmt.Errorf("failed to list users on step %s: %w", step, err)
	}

	for _, user := range users {
		if !ready(user) {
			continue
		}
		if err := a.advanceUser(ctx, user); err != nil {
			a.cfg.Log.Error("failed to advance user", "user", user.ID, "step", user.Step, "error", err)
		}
	}
	return nil
}

// ready reports whether the user meets the prerequisite for the next step.
func ready(user *domain.User) bool {
	switch user.Step {
	case domain.StepCreated:
		return user.EmailVerified
	case domain.StepVerified:
		return user.Funded
	case domain.StepFunded:
		return true // funded users activate on the next pass
	default:
		return false
	}
}

func (a *Agent) advanceUser(ctx context.Context, user *domain.User) error {
	next := domain.NextStep(user.Step)
	if next == "" {
		return nil
	}

	if a.cfg.Locks != nil {
		got, err := a.cfg.Locks.AcquireStepLock(ctx, user.ID, string(next), stepLockTTL)
		if err != nil {
			return fmt.Errorf("failed to lock step transition: %w", err)
		}
		if !got {
			return nil // another instance owns this transition
		}
		defer func() {
			if err := a.cfg.Locks.ReleaseStepLock(ctx, user.ID, string(next)); err != nil {
				a.cfg.Log.Warn("failed to release step lock", "user", user.ID, "error", err)
			}
		}()
	}

	at := time.Now()
	err := a.cfg.Executor.Do(ctx, "onboarding.advance_step", a.cfg.Policy, func(ctx context.Context) error {
		return a.cfg.Users.AdvanceStep(ctx, user.ID, next, at)
	})
	if err != nil {
		return fmt.Errorf("failed to advance user %s to %s: %w", user.ID, next, err)
	}

	a.cfg.Log.Info("user advanced", "user", user.ID, "from", user.Step, "to", next)

	subject, body := stepMessage(next)
	if err := a.cfg.Composer.NotifyUser(ctx, user.ID, subject, body); err != nil {
		a.cfg.Log.Warn("failed to enqueue step notification", "user", user.ID, "error", err)
	}
	return nil
}

func stepMessage(step domain.OnboardingStep) (subject, body string) {
	switch step {
	case domain.StepVerified:
		return "Email verified", "Your email is verified. Fund your account to start receiving picks."
	case domain.StepFunded:
		return "Account funded", "Your account is funded. You will be activated shortly."
	case domain.StepActive:
		return "Welcome to the picks feed", "Your account is active. Picks and grades will arrive on your configured channels."
	default:
		return "Account update", "Your account moved to the next onboarding step."
	}
}
