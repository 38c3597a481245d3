// Package aggregate derives player statistics from per-game results.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/rickgao/pokerledger/internal/model"
)

// DefaultPriorGames is the number of phantom break-even games the rating
// assumes before a player's first real one.
const DefaultPriorGames = 5

// Compute folds results into an Aggregate. results must be ordered
// chronologically; cumulative highs and lows depend on the order.
func Compute(results []model.PlayerGameResult, priorGames int) model.Aggregate {
	var agg model.Aggregate
	cumulative := decimal.Zero

	for _, r := range results {
		cumulative = cumulative.Add(r.Net)
		agg.GamesPlayed++

		switch r.Net.Sign() {
		case 1:
			agg.GamesUp++
			if r.Net.GreaterThan(agg.BiggestWin) {
				agg.BiggestWin = r.Net
			}
		case -1:
			agg.GamesDown++
			if r.Net.LessThan(agg.BiggestLoss) {
				agg.BiggestLoss = r.Net
			}
		}

		if cumulative.GreaterThan(agg.HighestNet) {
			agg.HighestNet = cumulative
		}
		if cumulative.LessThan(agg.LowestNet) {
			agg.LowestNet = cumulative
		}
	}

	agg.Net = cumulative
	if agg.GamesPlayed > 0 {
		agg.AverageNet = cumulative.Div(decimal.NewFromInt(int64(agg.GamesPlayed))).Round(2)
	}
	agg.Rating = Rating(cumulative, agg.GamesPlayed, priorGames)
	return agg
}

// Rating is net per game with priorGames break-even games added to the
// denominator, rounded to cents. It moves in the same direction as net and
// stays near zero until a player has a few games behind them.
func Rating(net decimal.Decimal, gamesPlayed, priorGames int) decimal.Decimal {
	if priorGames < 0 {
		priorGames = 0
	}
	denom := gamesPlayed + priorGames
	if denom == 0 {
		return decimal.Zero
	}
	return net.Div(decimal.NewFromInt(int64(denom))).Round(2)
}
