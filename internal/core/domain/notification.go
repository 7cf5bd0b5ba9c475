package domain

import "time"

// ChannelKind names an outbound delivery channel.
type ChannelKind string

const (
	ChannelDiscord ChannelKind = "discord"
	ChannelSlack   ChannelKind = "slack"
	ChannelEmail   ChannelKind = "email"
	ChannelSMS     ChannelKind = "sms"
	ChannelNotion  ChannelKind = "notion"
)

// NotificationStatus is the delivery state of an outbox row.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationDead    NotificationStatus = "dead"
)

// Notification is one outbox row waiting for delivery on a single channel.
type Notification struct {
	ID        string             `db:"id"         json:"id"`
	Channel   ChannelKind        `db:"channel"    json:"channel"`
	UserID    string             `db:"user_id"    json:"user_id"`
	Recipient string             `db:"recipient"  json:"recipient"` // webhook URL, email addr, phone, page id
	Subject   string             `db:"subject"    json:"subject"`
	Body      string             `db:"body"       json:"body"`
	Status    NotificationStatus `db:"status"     json:"status"`
	Attempts  int                `db:"attempts"   json:"attempts"`
	LastError string             `db:"last_error" json:"last_error"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	SentAt    *time.Time         `db:"sent_at"    json:"sent_at,omitempty"`
}
