package oddsmath

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Profit returns the profit of a winning wager at American odds
// $110 at -110 → $100.00
// $100 at +150 → $150.00
func Profit(stake decimal.Decimal, american int) (decimal.Decimal, error) {
	if american > -100 && american < 100 {
		return decimal.Zero, fmt.Errorf("invalid American odds %d", american)
	}

	hundred := decimal.NewFromInt(100)
	price := decimal.NewFromInt(int64(american))

	if american > 0 {
		return stake.Mul(price).Div(hundred).Round(2), nil
	}
	return stake.Mul(hundred).Div(price.Neg()).Round(2), nil
}

// CLVCents returns closing line value in cents per dollar from the change in
// implied probability between the bet price and the closing price. Positive
// means the price shortened after the bet.
// CLV = (1/close_decimal - 1/bet_decimal) * 100
func CLVCents(betPrice, closingPrice int) (float64, error) {
	betProb, err := ImpliedProbability(betPrice)
	if err != nil {
		return 0, fmt.Errorf("bet price: %w", err)
	}
	closeProb, err := ImpliedProbability(closingPrice)
	if err != nil {
		return 0, fmt.Errorf("closing price: %w", err)
	}
	return (closeProb - betProb) * 100.0, nil
}
