// Package dispatch drains the notification outbox. Each tick loads a batch of
// pending rows, groups them by channel, and delivers every channel's rows on
// its own goroutine. Failed rows accumulate attempts until they go dead.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pickflow/pickflow/internal/agents"
	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
	"github.com/pickflow/pickflow/internal/metrics"
	"github.com/pickflow/pickflow/internal/notify"
	"github.com/pickflow/pickflow/internal/retry"
)

// claimTTL bounds how long a delivery claim outlives a crashed instance.
const claimTTL = 5 * time.Minute

// Deduper prevents two agent instances from delivering the same row.
type Deduper interface {
	ClaimOnce(ctx context.Context, scope, ref string, ttl time.Duration) (bool, error)
	ReleaseClaim(ctx context.Context, scope, ref string) error
}

// Config holds dispatch agent dependencies.
type Config struct {
	Outbox   storage.NotificationRepository
	Channels []notify.Channel
	Executor *retry.Executor
	Policy   retry.Policy
	Dedupe   Deduper // optional

	// BatchSize bounds how many pending rows one tick drains.
	BatchSize int

	// MaxAttempts is the total delivery attempts across ticks before a row
	// goes dead. Each tick's send burns one outbox attempt regardless of how
	// many retries the executor spent inside it.
	MaxAttempts int

	Interval time.Duration
	Log      *slog.Logger
}

// Agent delivers outbox rows on an interval.
type Agent struct {
	cfg     Config
	senders map[domain.ChannelKind]notify.Channel
	loop    *agents.Loop
	tracker agents.Tracker
}

// New creates the dispatch agent.
func New(cfg Config) *Agent {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}

	senders := make(map[domain.ChannelKind]notify.Channel, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		senders[ch.Kind()] = ch
	}

	return &Agent{
		cfg:     cfg,
		senders: senders,
		loop:    agents.NewLoop("dispatch", cfg.Interval, cfg.Log),
	}
}

func (a *Agent) Name() string { return "dispatch" }

// Start runs the drain loop. Blocks until ctx is done or Stop is called.
func (a *Agent) Start(ctx context.Context) error {
	return a.loop.Run(ctx, &a.tracker, a.tick)
}

// Stop signals the loop to exit.
func (a *Agent) Stop() error {
	a.loop.Halt()
	return nil
}

// Health reports the agent's last drain outcome.
func (a *Agent) Health() agents.Status {
	return a.tracker.Snapshot(a.Name())
}

func (a *Agent) tick(ctx context.Context) error {
	notes, err := retry.DoValue(ctx, a.cfg.Executor, "dispatch.list_pending", a.cfg.Policy,
		func(ctx context.Context) ([]*domain.Notification, error) {
			return a.cfg.Outbox.ListPending(ctx, a.cfg.BatchSize)
		})
	if err != nil {
		return fmt.Errorf("failed to load pending notifications: %w", err)
	}

	byChannel := make(map[domain.ChannelKind][]*domain.Notification)
	for _, n := range notes {
		byChannel[n.Channel] = append(byChannel[n.Channel], n)
	}

	// Channels are independent transports; a slow SMTP server must not hold
	// up webhook delivery.
	g, gctx := errgroup.WithContext(ctx)
	for kind, rows := range byChannel {
		kind, rows := kind, rows
		g.Go(func() error {
			return a.drainChannel(gctx, kind, rows)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return a.publishDepth(ctx)
}

// drainChannel delivers one channel's rows in order.
func (a *Agent) drainChannel(ctx context.Context, kind domain.ChannelKind, rows []*domain.Notification) error {
	sender, ok := a.senders[kind]
	if !ok {
		// No sender configured. Rows stay pending so enabling the channel
		// later delivers the backlog.
		a.cfg.Log.Warn("no sender for channel, leaving rows pending", "channel", kind, "rows", len(rows))
		return nil
	}

	for _, note := range rows {
		if err := a.deliver(ctx, sender, note); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends one row and records the outcome. Only bookkeeping failures
// propagate; a delivery failure marks the row and moves on.
func (a *Agent) deliver(ctx context.Context, sender notify.Channel, note *domain.Notification) error {
	if a.cfg.Dedupe != nil {
		got, err := a.cfg.Dedupe.ClaimOnce(ctx, "dispatch", note.ID, claimTTL)
		if err != nil {
			return fmt.Errorf("failed to claim notification %s: %w", note.ID, err)
		}
		if !got {
			return nil // another instance is delivering this row
		}
	}

	label := fmt.Sprintf("dispatch.send_%s", note.Channel)
	sendErr := a.cfg.Executor.Do(ctx, label, a.cfg.Policy, func(ctx context.Context) error {
		return sender.Send(ctx, note)
	})

	if sendErr == nil {
		metrics.NotificationsSent.WithLabelValues(string(note.Channel), "sent").Inc()
		if err := a.cfg.Outbox.MarkSent(ctx, note.ID, time.Now()); err != nil {
			return fmt.Errorf("failed to mark notification %s sent: %w", note.ID, err)
		}
		return nil
	}

	attempts := note.Attempts + 1
	dead := attempts >= a.cfg.MaxAttempts
	if dead {
		metrics.NotificationsSent.WithLabelValues(string(note.Channel), "dead").Inc()
		a.cfg.Log.Error("notification exhausted delivery attempts",
			"id", note.ID, "channel", note.Channel, "attempts", attempts, "error", sendErr)
	} else {
		metrics.NotificationsSent.WithLabelValues(string(note.Channel), "failed").Inc()
		a.cfg.Log.Warn("notification delivery failed",
			"id", note.ID, "channel", note.Channel, "attempts", attempts, "error", sendErr)
	}

	if err := a.cfg.Outbox.MarkFailed(ctx, note.ID, attempts, sendErr.Error(), dead); err != nil {
		return fmt.Errorf("failed to mark notification %s failed: %w", note.ID, err)
	}

	// Release the claim so the next drain can retry the row.
	if a.cfg.Dedupe != nil && !dead {
		if err := a.cfg.Dedupe.ReleaseClaim(ctx, "dispatch", note.ID); err != nil {
			a.cfg.Log.Warn("failed to release delivery claim", "id", note.ID, "error", err)
		}
	}
	return nil
}

// publishDepth refreshes the per-channel outbox depth gauge.
func (a *Agent) publishDepth(ctx context.Context) error {
	counts, err := a.cfg.Outbox.CountByStatus(ctx, domain.NotificationPending)
	if err != nil {
		return fmt.Errorf("failed to count pending notifications: %w", err)
	}

	for _, kind := range []domain.ChannelKind{
		domain.ChannelDiscord, domain.ChannelSlack, domain.ChannelEmail,
		domain.ChannelSMS, domain.ChannelNotion,
	} {
		metrics.OutboxDepth.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
	return nil
}
