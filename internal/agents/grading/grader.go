package grading

import (
	"fmt"

	"github.com/pickflow/pickflow/internal/core/domain"
)

// Grade settles one pick against its game. The game must be final or
// canceled; price and units never influence the result.
func Grade(pick *domain.Pick, game *domain.Game) (domain.PickStatus, error) {
	if game.Voided() {
		return domain.PickStatusVoid, nil
	}
	if !game.Final() {
		return "", fmt.Errorf("game %s is not final", game.ID)
	}

	switch pick.Market {
	case domain.MarketMoneyline:
		return gradeMoneyline(pick, game)
	case domain.MarketSpread:
		return gradeSpread(pick, game)
	case domain.MarketTotal:
		return gradeTotal(pick, game)
	default:
		return "", fmt.Errorf("unknown market %q on pick %s", pick.Market, pick.ID)
	}
}

func gradeMoneyline(pick *domain.Pick, game *domain.Game) (domain.PickStatus, error) {
	side, opp, err := sideScores(pick, game)
	if err != nil {
		return "", err
	}
	switch {
	case side > opp:
		return domain.PickStatusWon, nil
	case side < opp:
		return domain.PickStatusLost, nil
	default:
		return domain.PickStatusPush, nil
	}
}

// gradeSpread applies the pick's line to its side: an exact cover pushes.
func gradeSpread(pick *domain.Pick, game *domain.Game) (domain.PickStatus, error) {
	side, opp, err := sideScores(pick, game)
	if err != nil {
		return "", err
	}
	adjusted := float64(side) + pick.Line
	switch {
	case adjusted > float64(opp):
		return domain.PickStatusWon, nil
	case adjusted < float64(opp):
		return domain.PickStatusLost, nil
	default:
		return domain.PickStatusPush, nil
	}
}

func gradeTotal(pick *domain.Pick, game *domain.Game) (domain.PickStatus, error) {
	total := float64(game.HomeScore + game.AwayScore)
	if total == pick.Line {
		return domain.PickStatusPush, nil
	}

	over := total > pick.Line
	switch pick.Side {
	case domain.SideOver:
		if over {
			return domain.PickStatusWon, nil
		}
		return domain.PickStatusLost, nil
	case domain.SideUnder:
		if !over {
			return domain.PickStatusWon, nil
		}
		return domain.PickStatusLost, nil
	default:
		return "", fmt.Errorf("invalid side %q for total on pick %s", pick.Side, pick.ID)
	}
}

func sideScores(pick *domain.Pick, game *domain.Game) (side, opp int, err error) {
	switch pick.Side {
	case domain.SideHome:
		return game.HomeScore, game.AwayScore, nil
	case domain.SideAway:
		return game.AwayScore, game.HomeScore, nil
	default:
		return 0, 0, fmt.Errorf("invalid side %q for %s on pick %s", pick.Side, pick.Market, pick.ID)
	}
}
