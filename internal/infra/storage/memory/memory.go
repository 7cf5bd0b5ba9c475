package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
)

// MemoryStorage backs every repository with in-process maps. Used for tests
// and for running the agents without a database.
type MemoryStorage struct {
	games         map[string]*domain.Game
	picks         map[string]*domain.Pick
	odds          []*domain.OddsSnapshot
	cursors       map[string]*domain.FeedCursor
	users         map[string]*domain.User
	notifications map[string]*domain.Notification
	findings      map[string]*domain.AuditFinding
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		games:         make(map[string]*domain.Game),
		picks:         make(map[string]*domain.Pick),
		cursors:       make(map[string]*domain.FeedCursor),
		users:         make(map[string]*domain.User),
		notifications: make(map[string]*domain.Notification),
		findings:      make(map[string]*domain.AuditFinding),
	}
}

// PutGame stores a game verbatim, preserving its timestamps. Tests use this
// to seed games without Upsert refreshing updated_at.
func (s *MemoryStorage) PutGame(game *domain.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := *game
	s.games[g.ID] = &g
}

// -----------------------------------------------------------------------------
// Game Repository
// -----------------------------------------------------------------------------

type GameRepo struct {
	store *MemoryStorage
}

func NewGameRepo(store *MemoryStorage) *GameRepo {
	return &GameRepo{store: store}
}

func (r *GameRepo) Upsert(ctx context.Context, game *domain.Game) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	g := *game
	g.UpdatedAt = time.Now()
	r.store.games[g.ID] = &g
	return nil
}

func (r *GameRepo) GetByID(ctx context.Context, id string) (*domain.Game, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	g, ok := r.store.games[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return g, nil
}

func (r *GameRepo) ListFinalWithPendingPicks(ctx context.Context) ([]*domain.Game, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	pendingGames := make(map[string]bool)
	for _, p := range r.store.picks {
		if p.Status == domain.PickStatusPending {
			pendingGames[p.GameID] = true
		}
	}

	var games []*domain.Game
	for id, g := range r.store.games {
		if pendingGames[id] && (g.Status == domain.GameStatusFinal || g.Status == domain.GameStatusCanceled) {
			games = append(games, g)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].StartsAt.Before(games[j].StartsAt) })
	return games, nil
}

// -----------------------------------------------------------------------------
// Pick Repository
// -----------------------------------------------------------------------------

type PickRepo struct {
	store *MemoryStorage
}

func NewPickRepo(store *MemoryStorage) *PickRepo {
	return &PickRepo{store: store}
}

func (r *PickRepo) Save(ctx context.Context, pick *domain.Pick) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p := *pick
	r.store.picks[p.ID] = &p
	return nil
}

func (r *PickRepo) GetByID(ctx context.Context, id string) (*domain.Pick, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.picks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (r *PickRepo) ListPendingByGame(ctx context.Context, gameID string) ([]*domain.Pick, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var picks []*domain.Pick
	for _, p := range r.store.picks {
		if p.GameID == gameID && p.Status == domain.PickStatusPending {
			picks = append(picks, p)
		}
	}
	sort.Slice(picks, func(i, j int) bool { return picks[i].PlacedAt.Before(picks[j].PlacedAt) })
	return picks, nil
}

func (r *PickRepo) SetGrade(
	ctx context.Context,
	id string,
	status domain.PickStatus,
	gradedAt time.Time,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.picks[id]
	if !ok || p.Status != domain.PickStatusPending {
		return nil
	}
	p.Status = status
	t := gradedAt
	p.GradedAt = &t
	return nil
}

func (r *PickRepo) ListOrphaned(ctx context.Context) ([]*domain.Pick, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var picks []*domain.Pick
	for _, p := range r.store.picks {
		if _, ok := r.store.games[p.GameID]; !ok {
			picks = append(picks, p)
		}
	}
	return picks, nil
}

func (r *PickRepo) ListStalePending(ctx context.Context, cutoff time.Time) ([]*domain.Pick, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var picks []*domain.Pick
	for _, p := range r.store.picks {
		if p.Status != domain.PickStatusPending {
			continue
		}
		g, ok := r.store.games[p.GameID]
		if ok && g.Status == domain.GameStatusFinal && g.UpdatedAt.Before(cutoff) {
			picks = append(picks, p)
		}
	}
	return picks, nil
}

func (r *PickRepo) ListGradeConflicts(ctx context.Context) ([]*domain.Pick, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var picks []*domain.Pick
	for _, p := range r.store.picks {
		settled := p.Status != domain.PickStatusPending
		if settled != (p.GradedAt != nil) {
			picks = append(picks, p)
		}
	}
	return picks, nil
}

// -----------------------------------------------------------------------------
// Odds Repository
// -----------------------------------------------------------------------------

type OddsRepo struct {
	store *MemoryStorage
}

func NewOddsRepo(store *MemoryStorage) *OddsRepo {
	return &OddsRepo{store: store}
}

func (r *OddsRepo) SaveBatch(ctx context.Context, snaps []*domain.OddsSnapshot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range snaps {
		copied := *s
		r.store.odds = append(r.store.odds, &copied)
	}
	return nil
}

func (r *OddsRepo) Latest(
	ctx context.Context,
	gameID string,
	market domain.Market,
) (*domain.OddsSnapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var latest *domain.OddsSnapshot
	for _, s := range r.store.odds {
		if s.GameID != gameID || s.Market != market {
			continue
		}
		if latest == nil || s.CapturedAt.After(latest.CapturedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// -----------------------------------------------------------------------------
// Cursor Repository
// -----------------------------------------------------------------------------

type CursorRepo struct {
	store *MemoryStorage
}

func NewCursorRepo(store *MemoryStorage) *CursorRepo {
	return &CursorRepo{store: store}
}

func (r *CursorRepo) Get(ctx context.Context, league string) (*domain.FeedCursor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.cursors[league]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c, nil
}

func (r *CursorRepo) Save(ctx context.Context, cursor *domain.FeedCursor) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *cursor
	c.UpdatedAt = time.Now()
	r.store.cursors[c.League] = &c
	return nil
}

// -----------------------------------------------------------------------------
// User Repository
// -----------------------------------------------------------------------------

type UserRepo struct {
	store *MemoryStorage
}

func NewUserRepo(store *MemoryStorage) *UserRepo {
	return &UserRepo{store: store}
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (r *UserRepo) Save(ctx context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u := *user
	r.store.users[u.ID] = &u
	return nil
}

func (r *UserRepo) ListByStep(
	ctx context.Context,
	step domain.OnboardingStep,
) ([]*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var users []*domain.User
	for _, u := range r.store.users {
		if u.Step == step {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (r *UserRepo) AdvanceStep(
	ctx context.Context,
	id string,
	step domain.OnboardingStep,
	at time.Time,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Step = step
	u.StepChangedAt = at
	return nil
}

// -----------------------------------------------------------------------------
// Notification Outbox
// -----------------------------------------------------------------------------

type OutboxRepo struct {
	store *MemoryStorage
}

func NewOutboxRepo(store *MemoryStorage) *OutboxRepo {
	return &OutboxRepo{store: store}
}

func (r *OutboxRepo) Enqueue(ctx context.Context, notes ...*domain.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, n := range notes {
		copied := *n
		r.store.notifications[copied.ID] = &copied
	}
	return nil
}

func (r *OutboxRepo) ListPending(ctx context.Context, limit int) ([]*domain.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var notes []*domain.Notification
	for _, n := range r.store.notifications {
		if n.Status == domain.NotificationPending {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt.Before(notes[j].CreatedAt) })
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, nil
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n, ok := r.store.notifications[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.Status = domain.NotificationSent
	n.Attempts++
	t := at
	n.SentAt = &t
	return nil
}

func (r *OutboxRepo) MarkFailed(
	ctx context.Context,
	id string,
	attempts int,
	lastError string,
	dead bool,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n, ok := r.store.notifications[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.Attempts = attempts
	n.LastError = lastError
	if dead {
		n.Status = domain.NotificationDead
	} else {
		n.Status = domain.NotificationPending
	}
	return nil
}

func (r *OutboxRepo) CountByStatus(
	ctx context.Context,
	status domain.NotificationStatus,
) (map[domain.ChannelKind]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[domain.ChannelKind]int)
	for _, n := range r.store.notifications {
		if n.Status == status {
			out[n.Channel]++
		}
	}
	return out, nil
}

func (r *OutboxRepo) ListDeadOlderThan(
	ctx context.Context,
	cutoff time.Time,
) ([]*domain.Notification, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var notes []*domain.Notification
	for _, n := range r.store.notifications {
		if n.Status == domain.NotificationDead && n.CreatedAt.Before(cutoff) {
			notes = append(notes, n)
		}
	}
	return notes, nil
}

// -----------------------------------------------------------------------------
// Audit Repository
// -----------------------------------------------------------------------------

type AuditRepo struct {
	store *MemoryStorage
}

func NewAuditRepo(store *MemoryStorage) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Add(ctx context.Context, finding *domain.AuditFinding) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, f := range r.store.findings {
		if f.Kind == finding.Kind && f.RowRef == finding.RowRef && f.ResolvedAt == nil {
			return nil
		}
	}
	copied := *finding
	r.store.findings[copied.ID] = &copied
	return nil
}

func (r *AuditRepo) ListOpen(ctx context.Context) ([]*domain.AuditFinding, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var findings []*domain.AuditFinding
	for _, f := range r.store.findings {
		if f.ResolvedAt == nil {
			findings = append(findings, f)
		}
	}
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].DetectedAt.Before(findings[j].DetectedAt)
	})
	return findings, nil
}

func (r *AuditRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f, ok := r.store.findings[id]
	if !ok {
		return storage.ErrNotFound
	}
	if f.ResolvedAt == nil {
		t := at
		f.ResolvedAt = &t
	}
	return nil
}
