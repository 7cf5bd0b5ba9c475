package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
)

// Composer turns domain events into outbox rows. User-facing messages fan
// out to the contact info on the user record; operational announcements go
// to the configured team channels.
type Composer struct {
	users       storage.UserRepository
	outbox      storage.NotificationRepository
	opsChannels []domain.ChannelKind
}

// NewComposer creates a Composer. opsChannels lists the team channels
// (discord/slack/notion) that receive announcements.
func NewComposer(
	users storage.UserRepository,
	outbox storage.NotificationRepository,
	opsChannels []domain.ChannelKind,
) *Composer {
	return &Composer{
		users:       users,
		outbox:      outbox,
		opsChannels: opsChannels,
	}
}

// NotifyUser enqueues one outbox row per contact method the user has.
func (c *Composer) NotifyUser(ctx context.Context, userID, subject, body string) error {
	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	now := time.Now()
	var notes []*domain.Notification
	if user.Email != "" {
		notes = append(notes, newNote(domain.ChannelEmail, user.ID, user.Email, subject, body, now))
	}
	if user.Phone != "" {
		notes = append(notes, newNote(domain.ChannelSMS, user.ID, user.Phone, subject, body, now))
	}
	if len(notes) == 0 {
		return nil
	}

	if err := c.outbox.Enqueue(ctx, notes...); err != nil {
		return fmt.Errorf("failed to enqueue user notification: %w", err)
	}
	return nil
}

// Announce enqueues one outbox row per configured ops channel. The recipient
// is left empty so each sender falls back to its configured destination.
func (c *Composer) Announce(ctx context.Context, subject, body string) error {
	if len(c.opsChannels) == 0 {
		return nil
	}

	now := time.Now()
	notes := make([]*domain.Notification, 0, len(c.opsChannels))
	for _, ch := range c.opsChannels {
		notes = append(notes, newNote(ch, "", "", subject, body, now))
	}

	if err := c.outbox.Enqueue(ctx, notes...); err != nil {
		return fmt.Errorf("failed to enqueue announcement: %w", err)
	}
	return nil
}

func newNote(ch domain.ChannelKind, userID, recipient, subject, body string, at time.Time) *domain.Notification {
	return &domain.Notification{
		ID:        uuid.New().String(),
		Channel:   ch,
		UserID:    userID,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Status:    domain.NotificationPending,
		CreatedAt: at,
	}
}
