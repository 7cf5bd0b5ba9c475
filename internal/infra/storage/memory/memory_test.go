package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
)

func TestGameAndPickFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	games := NewGameRepo(store)
	picks := NewPickRepo(store)

	game := &domain.Game{
		ID:       "g1",
		League:   "nba",
		HomeTeam: "BOS",
		AwayTeam: "NYK",
		StartsAt: time.Now().Add(-2 * time.Hour),
		Status:   domain.GameStatusFinal,
	}
	require.NoError(t, games.Upsert(ctx, game))

	pick := &domain.Pick{
		ID:       "p1",
		UserID:   "u1",
		GameID:   "g1",
		Market:   domain.MarketMoneyline,
		Side:     domain.SideHome,
		Status:   domain.PickStatusPending,
		PlacedAt: time.Now().Add(-3 * time.Hour),
	}
	require.NoError(t, picks.Save(ctx, pick))

	gradable, err := games.ListFinalWithPendingPicks(ctx)
	require.NoError(t, err)
	require.Len(t, gradable, 1)
	require.Equal(t, "g1", gradable[0].ID)

	require.NoError(t, picks.SetGrade(ctx, "p1", domain.PickStatusWon, time.Now()))

	got, err := picks.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, domain.PickStatusWon, got.Status)
	require.NotNil(t, got.GradedAt)

	// Grading is idempotent: a second grade of a non-pending pick is a no-op.
	require.NoError(t, picks.SetGrade(ctx, "p1", domain.PickStatusLost, time.Now()))
	got, err = picks.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, domain.PickStatusWon, got.Status)

	gradable, err = games.ListFinalWithPendingPicks(ctx)
	require.NoError(t, err)
	require.Empty(t, gradable)
}

func TestOutbox(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	outbox := NewOutboxRepo(store)

	n1 := &domain.Notification{
		ID: "n1", Channel: domain.ChannelDiscord, Status: domain.NotificationPending,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	n2 := &domain.Notification{
		ID: "n2", Channel: domain.ChannelEmail, Status: domain.NotificationPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, outbox.Enqueue(ctx, n1, n2))

	pending, err := outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "n1", pending[0].ID, "oldest first")

	require.NoError(t, outbox.MarkSent(ctx, "n1", time.Now()))
	require.NoError(t, outbox.MarkFailed(ctx, "n2", 5, "boom", true))

	pending, err = outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	counts, err := outbox.CountByStatus(ctx, domain.NotificationDead)
	require.NoError(t, err)
	require.Equal(t, 1, counts[domain.ChannelEmail])
}

func TestAuditDedupe(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	audit := NewAuditRepo(store)

	f := &domain.AuditFinding{
		ID: "f1", Kind: domain.AuditOrphanPick, TableName: "picks", RowRef: "p9",
		DetectedAt: time.Now(),
	}
	require.NoError(t, audit.Add(ctx, f))

	dup := &domain.AuditFinding{
		ID: "f2", Kind: domain.AuditOrphanPick, TableName: "picks", RowRef: "p9",
		DetectedAt: time.Now(),
	}
	require.NoError(t, audit.Add(ctx, dup))

	open, err := audit.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1, "open duplicate should be ignored")

	require.NoError(t, audit.Resolve(ctx, "f1", time.Now()))
	open, err = audit.ListOpen(ctx)
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestUserSteps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	users := NewUserRepo(store)

	u := &domain.User{ID: "u1", Email: "a@b.c", Step: domain.StepCreated, CreatedAt: time.Now()}
	require.NoError(t, users.Save(ctx, u))

	onStep, err := users.ListByStep(ctx, domain.StepCreated)
	require.NoError(t, err)
	require.Len(t, onStep, 1)

	require.NoError(t, users.AdvanceStep(ctx, "u1", domain.StepVerified, time.Now()))
	got, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.StepVerified, got.Step)

	err = users.AdvanceStep(ctx, "missing", domain.StepVerified, time.Now())
	require.ErrorIs(t, err, storage.ErrNotFound)
}
