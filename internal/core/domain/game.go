package domain

import "time"

// GameStatus tracks a game through its lifecycle.
type GameStatus string

const (
	GameStatusScheduled GameStatus = "scheduled"
	GameStatusLive      GameStatus = "live"
	GameStatusFinal     GameStatus = "final"
	GameStatusCanceled  GameStatus = "canceled"
)

// Game represents a single scheduled contest picks can be placed on.
type Game struct {
	ID        string     `db:"id"         json:"id"`
	League    string     `db:"league"     json:"league"`
	HomeTeam  string     `db:"home_team"  json:"home_team"`
	AwayTeam  string     `db:"away_team"  json:"away_team"`
	StartsAt  time.Time  `db:"starts_at"  json:"starts_at"`
	Status    GameStatus `db:"status"     json:"status"`
	HomeScore int        `db:"home_score" json:"home_score"`
	AwayScore int        `db:"away_score" json:"away_score"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Final reports whether the game has a usable final score.
func (g *Game) Final() bool {
	return g.Status == GameStatusFinal
}

// Voided reports whether picks on this game should be voided.
func (g *Game) Voided() bool {
	return g.Status == GameStatusCanceled
}
