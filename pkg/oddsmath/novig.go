package oddsmath

import "fmt"

// RemoveVigMultiplicative removes the overround from a two-way market by
// normalizing both implied probabilities so they sum to 1.0
//
// Example:
// Side A: -110 (52.38% implied) | Side B: -110 (52.38% implied)
// Overround: 104.76% (4.76% vig)
// Fair: 50% / 50%
func RemoveVigMultiplicative(prob1, prob2 float64) (fair1, fair2 float64, err error) {
	if prob1 <= 0 || prob1 >= 1 || prob2 <= 0 || prob2 >= 1 {
		return 0, 0, fmt.Errorf("probabilities must be between 0 and 1")
	}

	total := prob1 + prob2
	if total < 1.0 {
		return 0, 0, fmt.Errorf("probabilities sum to %.4f: market is below fair", total)
	}

	return prob1 / total, prob2 / total, nil
}

// NoVigTwoWay returns the fair probability of each side of a two-way market
// quoted in American odds
func NoVigTwoWay(price1, price2 int) (fair1, fair2 float64, err error) {
	prob1, err := ImpliedProbability(price1)
	if err != nil {
		return 0, 0, fmt.Errorf("side 1: %w", err)
	}
	prob2, err := ImpliedProbability(price2)
	if err != nil {
		return 0, 0, fmt.Errorf("side 2: %w", err)
	}
	return RemoveVigMultiplicative(prob1, prob2)
}
