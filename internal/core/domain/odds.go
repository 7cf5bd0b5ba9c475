package domain

import "time"

// OddsSnapshot is one observation of a book's line for a game market.
type OddsSnapshot struct {
	ID         string    `db:"id"          json:"id"`
	GameID     string    `db:"game_id"     json:"game_id"`
	Book       string    `db:"book"        json:"book"`
	Market     Market    `db:"market"      json:"market"`
	Line       float64   `db:"line"        json:"line"`
	HomePrice  int       `db:"home_price"  json:"home_price"`
	AwayPrice  int       `db:"away_price"  json:"away_price"`
	CapturedAt time.Time `db:"captured_at" json:"captured_at"`
}

// FeedCursor records ingestion progress for one league's odds feed.
type FeedCursor struct {
	League    string    `db:"league"     json:"league"`
	LastSeen  time.Time `db:"last_seen"  json:"last_seen"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
