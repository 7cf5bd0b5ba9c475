package onboarding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pickflow/pickflow/internal/agents"
	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage/memory"
	"github.com/pickflow/pickflow/internal/retry"
)

type mockLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	refused bool
}

func (l *mockLocker) AcquireStepLock(ctx context.Context, userID, step string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refused {
		return false, nil
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	l.held[userID+":"+step] = true
	return true, nil
}

func (l *mockLocker) ReleaseStepLock(ctx context.Context, userID, step string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, userID+":"+step)
	return nil
}

func setup(t *testing.T, locks StepLocker) (*Agent, *memory.MemoryStorage) {
	t.Helper()
	store := memory.NewMemoryStorage()
	composer := agents.NewComposer(memory.NewUserRepo(store), memory.NewOutboxRepo(store), nil)

	agent := New(Config{
		Users:    memory.NewUserRepo(store),
		Composer: composer,
		Executor: retry.New(nil),
		Policy: retry.Policy{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			ShouldRetry:    retry.Transient,
		},
		Locks:    locks,
		Interval: time.Hour, // tick driven manually
	})
	return agent, store
}

func saveUser(t *testing.T, store *memory.MemoryStorage, user *domain.User) {
	t.Helper()
	if err := memory.NewUserRepo(store).Save(context.Background(), user); err != nil {
		t.Fatal(err)
	}
}

func userStep(t *testing.T, store *memory.MemoryStorage, id string) domain.OnboardingStep {
	t.Helper()
	u, err := memory.NewUserRepo(store).GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return u.Step
}

func TestTick_AdvancesVerifiedEmail(t *testing.T) {
	ctx := context.Background()
	agent, store := setup(t, nil)

	saveUser(t, store, &domain.User{
		ID:            "u1",
		Email:         "u1@example.com",
		Step:          domain.StepCreated,
		EmailVerified: true,
	})

	if err := agent.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if got := userStep(t, store, "u1"); got != domain.StepVerified {
		t.Errorf("step = %s, want verified", got)
	}
}

func TestTick_HoldsUnverifiedUser(t *testing.T) {
	ctx := context.Background()
	agent, store := setup(t, nil)

	saveUser(t, store, &domain.User{
		ID:   "u1",
		Step: domain.StepCreated,
	})

	if err := agent.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if got := userStep(t, store, "u1"); got != domain.StepCreated {
		t.Errorf("step = %s, want created", got)
	}
}

func TestTick_OneStepPerPass(t *testing.T) {
	ctx := context.Background()
	agent, store := setup(t, nil)

	// Fully qualified user still walks the funnel one tick at a time.
	saveUser(t, store, &domain.User{
		ID:            "u1",
		Step:          domain.StepCreated,
		EmailVerified: true,
		Funded:        true,
	})

	steps := []domain.OnboardingStep{domain.StepVerified, domain.StepFunded, domain.StepActive}
	for _, want := range steps {
		if err := agent.tick(ctx); err != nil {
			t.Fatalf("tick failed: %v", err)
		}
		if got := userStep(t, store, "u1"); got != want {
			t.Fatalf("step = %s, want %s", got, want)
		}
	}
}

func TestTick_ActiveUsersStayPut(t *testing.T) {
	ctx := context.Background()
	agent, store := setup(t, nil)

	saveUser(t, store, &domain.User{
		ID:            "u1",
		Step:          domain.StepActive,
		EmailVerified: true,
		Funded:        true,
	})

	if err := agent.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if got := userStep(t, store, "u1"); got != domain.StepActive {
		t.Errorf("step = %s, want active", got)
	}
}

func TestTick_EnqueuesStepNotification(t *testing.T) {
	ctx := context.Background()
	agent, store := setup(t, nil)
	outbox := memory.NewOutboxRepo(store)

	saveUser(t, store, &domain.User{
		ID:            "u1",
		Email:         "u1@example.com",
		Phone:         "+15550001111",
		Step:          domain.StepCreated,
		EmailVerified: true,
	})

	if err := agent.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	pending, err := outbox.ListPending(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	// One row per contact method.
	if len(pending) != 2 {
		t.Fatalf("expected 2 outbox rows, got %d", len(pending))
	}
}

func TestTick_SkipsLockedTransition(t *testing.T) {
	ctx := context.Background()
	locks := &mockLocker{refused: true}
	agent, store := setup(t, locks)

	saveUser(t, store, &domain.User{
		ID:            "u1",
		Step:          domain.StepCreated,
		EmailVerified: true,
	})

	if err := agent.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if got := userStep(t, store, "u1"); got != domain.StepCreated {
		t.Errorf("locked user advanced to %s, want created", got)
	}
}

func TestTick_ReleasesLockAfterAdvance(t *testing.T) {
	ctx := context.Background()
	locks := &mockLocker{}
	agent, store := setup(t, locks)

	saveUser(t, store, &domain.User{
		ID:            "u1",
		Step:          domain.StepCreated,
		EmailVerified: true,
	})

	if err := agent.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if got := userStep(t, store, "u1"); got != domain.StepVerified {
		t.Fatalf("step = %s, want verified", got)
	}
	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.held) != 0 {
		t.Errorf("lock still held after advance: %v", locks.held)
	}
}
