package domain

import "time"

// Market identifies the bet type a pick is placed on.
type Market string

const (
	MarketMoneyline Market = "moneyline"
	MarketSpread    Market = "spread"
	MarketTotal     Market = "total"
)

// Side is which half of a market the pick backs.
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// PickStatus is the grading state of a pick.
type PickStatus string

const (
	PickStatusPending PickStatus = "pending"
	PickStatusWon     PickStatus = "won"
	PickStatusLost    PickStatus = "lost"
	PickStatusPush    PickStatus = "push"
	PickStatusVoid    PickStatus = "void"
)

// Pick is a user's bet on one market of one game.
type Pick struct {
	ID       string     `db:"id"        json:"id"`
	UserID   string     `db:"user_id"   json:"user_id"`
	GameID   string     `db:"game_id"   json:"game_id"`
	Market   Market     `db:"market"    json:"market"`
	Side     Side       `db:"side"      json:"side"`
	Line     float64    `db:"line"      json:"line"`
	Price    int        `db:"price"     json:"price"` // american odds at placement
	Units    float64    `db:"units"     json:"units"`
	Status   PickStatus `db:"status"    json:"status"`
	PlacedAt time.Time  `db:"placed_at" json:"placed_at"`
	GradedAt *time.Time `db:"graded_at" json:"graded_at,omitempty"`
}

// Graded reports whether the pick has reached a terminal grading state.
func (p *Pick) Graded() bool {
	return p.Status != PickStatusPending
}
