package settlement

import (
	"fmt"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/oddsmath"
	"github.com/shopspring/decimal"
)

// Wager is the part of a placed bet needed to grade it
type Wager struct {
	MarketType models.MarketType
	Side       models.Side
	Line       float64 // bet side's spread, or the total
	Price      int
	Stake      decimal.Decimal
}

// Settle grades a wager against a final score and returns the outcome and
// profit/loss (negative stake on a loss, zero on a push)
func Settle(w Wager, homeScore, awayScore int) (models.Outcome, decimal.Decimal, error) {
	outcome, err := Grade(w, homeScore, awayScore)
	if err != nil {
		return "", decimal.Zero, err
	}

	switch outcome {
	case models.OutcomeWin:
		profit, err := oddsmath.Profit(w.Stake, w.Price)
		if err != nil {
			return "", decimal.Zero, fmt.Errorf("calculate profit: %w", err)
		}
		return outcome, profit, nil
	case models.OutcomeLoss:
		return outcome, w.Stake.Neg(), nil
	}
	return outcome, decimal.Zero, nil
}

// Grade determines whether a wager won, lost or pushed
func Grade(w Wager, homeScore, awayScore int) (models.Outcome, error) {
	switch w.MarketType {
	case models.MarketMoneyline:
		return gradeMoneyline(w.Side, homeScore, awayScore)
	case models.MarketSpread:
		return gradeSpread(w.Side, w.Line, homeScore, awayScore)
	case models.MarketTotal:
		return gradeTotal(w.Side, w.Line, homeScore, awayScore)
	}
	return "", fmt.Errorf("unknown market type %q", w.MarketType)
}

func gradeMoneyline(side models.Side, homeScore, awayScore int) (models.Outcome, error) {
	if homeScore == awayScore {
		return models.OutcomePush, nil
	}

	switch side {
	case models.SideHome:
		return winIf(homeScore > awayScore), nil
	case models.SideAway:
		return winIf(awayScore > homeScore), nil
	}
	return "", fmt.Errorf("invalid moneyline side %q", side)
}

func gradeSpread(side models.Side, spread float64, homeScore, awayScore int) (models.Outcome, error) {
	var adjusted, opponent float64

	switch side {
	case models.SideHome:
		adjusted = float64(homeScore) + spread
		opponent = float64(awayScore)
	case models.SideAway:
		adjusted = float64(awayScore) + spread
		opponent = float64(homeScore)
	default:
		return "", fmt.Errorf("invalid spread side %q", side)
	}

	if adjusted == opponent {
		return models.OutcomePush, nil
	}
	return winIf(adjusted > opponent), nil
}

func gradeTotal(side models.Side, line float64, homeScore, awayScore int) (models.Outcome, error) {
	total := float64(homeScore + awayScore)
	if total == line {
		return models.OutcomePush, nil
	}

	switch side {
	case models.SideOver:
		return winIf(total > line), nil
	case models.SideUnder:
		return winIf(total < line), nil
	}
	return "", fmt.Errorf("invalid total side %q", side)
}

func winIf(won bool) models.Outcome {
	if won {
		return models.OutcomeWin
	}
	return models.OutcomeLoss
}
