package grading

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

// =============================================================================
// Mock regrade queue
// =============================================================================

type mockRegradeQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *mockRegradeQueue) PushRegrade(ctx context.Context, pickID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, pickID)
	return nil
}

func (q *mockRegradeQueue) PopRegrade(ctx context.Context) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", false, nil
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true, nil
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		ShouldRetry:    retry.Transient,
	}
}

func setup(t *testing.T) (*Agent, *memory.MemoryStorage, *mockRegradeQueue) {
	t.Helper()
	store := memory.NewMemoryStorage()
	queue := &mockRegradeQueue{}
	composer := agents.NewComposer(memory.NewUserRepo(store), memory.NewOutboxRepo(store), nil)

	agent := New(Config{
		Games:    memory.NewGameRepo(store),
		Picks:    memory.NewPickRepo(store),
		Audit:    memory.NewAuditRepo(store),
		Composer: composer,
		Executor: retry.New(nil),
		Policy:   testPolicy(),
		Regrades: queue,
		Interval: time.Hour, // tick driven manually
	})
	return agent, store, queue
}

func TestTick_GradesAndNotifies(t *testing.T) {
	ctx := context.Background()
	agent, store, _ := setup(t)

	users := memory.NewUserRepo(store)
	games := memory.NewGameRepo(store)
	picks := memory.NewPickRepo(store)
	outbox := memory.NewOutboxRepo(store)

	if err := users.Save(ctx, &domain.User{ID: "u1", Email: "u1@example.com", Phone: "+15550001111"}); err != nil {
		t.Fatal(err)
	}
	game := &domain.Game{
		ID: "g1", League: "nba", HomeTeam: "BOS", AwayTeam: "NYK",
		Status: domain.GameStatusFinal, HomeScore: 110, AwayScore: 104,
	}
	if err := games.Upsert(ctx, game); err != nil {
		t.Fatal(err)
	}
	pick := &domain.Pick{
		ID: "p1", UserID: "u1", GameID: "g1",
		Market: domain.MarketSpread, Side: domain.SideHome, Line: -3.5,
		Status: domain.PickStatusPending, PlacedAt: time.Now(),
	}
	if err := picks.Save(ctx, pick); err != nil {
		t.Fatal(err)
	}

	if err := agent.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	graded, err := picks.GetByID(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if graded.Status != domain.PickStatusWon {
		t.Errorf("expected won, got %s", graded.Status)
	}
	if graded.GradedAt == nil {
		t.Error("expected graded_at to be set")
	}

	// One outbox row per contact method.
	pending, err := outbox.ListPending(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 notifications (email+sms), got %d", len(pending))
	}
}

func TestTick_BadMarketBecomesAuditFinding(t *testing.T) {
	ctx := context.Background()
	agent, store, queue := setup(t)

	games := memory.NewGameRepo(store)
	picks := memory.NewPickRepo(store)
	audit := memory.NewAuditRepo(store)

	game := &domain.Game{ID: "g1", Status: domain.GameStatusFinal, HomeScore: 1, AwayScore: 0}
	if err := games.Upsert(ctx, game); err != nil {
		t.Fatal(err)
	}
	pick := &domain.Pick{
		ID: "p1", UserID: "u1", GameID: "g1", Market: "teaser", Side: domain.SideHome,
		Status: domain.PickStatusPending, PlacedAt: time.Now(),
	}
	if err := picks.Save(ctx, pick); err != nil {
		t.Fatal(err)
	}

	if err := agent.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	open, err := audit.ListOpen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 audit finding, got %d", len(open))
	}
	if open[0].Kind != domain.AuditBadFeedRow || open[0].RowRef != "p1" {
		t.Errorf("unexpected finding: %+v", open[0])
	}

	// A data problem is terminal for grading: the pick must not loop through
	// the regrade queue.
	if len(queue.ids) != 0 {
		t.Errorf("bad pick should not be parked, queue has %v", queue.ids)
	}
}

func TestTick_DrainsRegradeQueue(t *testing.T) {
	ctx := context.Background()
	agent, store, queue := setup(t)

	users := memory.NewUserRepo(store)
	games := memory.NewGameRepo(store)
	picks := memory.NewPickRepo(store)

	if err := users.Save(ctx, &domain.User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatal(err)
	}
	game := &domain.Game{ID: "g1", League: "nfl", Status: domain.GameStatusFinal, HomeScore: 24, AwayScore: 17}
	if err := games.Upsert(ctx, game); err != nil {
		t.Fatal(err)
	}
	pick := &domain.Pick{
		ID: "p1", UserID: "u1", GameID: "g1",
		Market: domain.MarketMoneyline, Side: domain.SideAway,
		Status: domain.PickStatusPending, PlacedAt: time.Now(),
	}
	if err := picks.Save(ctx, pick); err != nil {
		t.Fatal(err)
	}

	if err := queue.PushRegrade(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	// Unknown ids are dropped, not retried forever.
	if err := queue.PushRegrade(ctx, "ghost"); err != nil {
		t.Fatal(err)
	}

	if err := agent.tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	graded, err := picks.GetByID(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if graded.Status != domain.PickStatusLost {
		t.Errorf("expected lost, got %s", graded.Status)
	}
	if len(queue.ids) != 0 {
		t.Errorf("queue should be drained, has %v", queue.ids)
	}
}
