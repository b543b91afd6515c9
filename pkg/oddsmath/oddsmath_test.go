package oddsmath_test

import (
	"math"
	"testing"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/oddsmath"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmericanToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		american int
		want     float64
	}{
		{"Even odds +100", 100, 2.0},
		{"Underdog +150", 150, 2.5},
		{"Standard -110", -110, 1.909090909},
		{"Favorite -150", -150, 1.666666667},
		{"Heavy favorite -200", -200, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oddsmath.AmericanToDecimal(tt.american)
			require.NoError(t, err)

			if math.Abs(got-tt.want) > 0.0001 {
				t.Errorf("AmericanToDecimal(%d) = %f, want %f", tt.american, got, tt.want)
			}
		})
	}
}

func TestAmericanToDecimal_Invalid(t *testing.T) {
	for _, american := range []int{0, 50, -99} {
		_, err := oddsmath.AmericanToDecimal(american)
		assert.Error(t, err, "odds %d should be rejected", american)
	}
}

func TestImpliedProbability(t *testing.T) {
	tests := []struct {
		american int
		want     float64
	}{
		{100, 0.50},
		{-110, 0.5238},
		{-200, 0.6667},
		{150, 0.40},
	}

	for _, tt := range tests {
		got, err := oddsmath.ImpliedProbability(tt.american)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 0.0001)
	}
}

func TestNoVigTwoWay(t *testing.T) {
	home, away, err := oddsmath.NoVigTwoWay(-110, -110)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, home, 1e-9)
	assert.InDelta(t, 0.5, away, 1e-9)

	home, away, err = oddsmath.NoVigTwoWay(-200, 170)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, home+away, 1e-9)
	assert.Greater(t, home, away)
}

func TestRemoveVigMultiplicative_BelowFair(t *testing.T) {
	_, _, err := oddsmath.RemoveVigMultiplicative(0.4, 0.4)
	assert.Error(t, err)
}

func TestProfit(t *testing.T) {
	tests := []struct {
		name     string
		stake    string
		american int
		want     string
	}{
		{"Standard -110", "110", -110, "100"},
		{"Underdog +150", "100", 150, "150"},
		{"Favorite -200", "50", -200, "25"},
		{"Rounded to cents", "33.33", -110, "30.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oddsmath.Profit(decimal.RequireFromString(tt.stake), tt.american)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestCLVCents(t *testing.T) {
	// Bet at +150 (40%), closed at +130 (43.48%)
	clv, err := oddsmath.CLVCents(150, 130)
	require.NoError(t, err)
	assert.InDelta(t, 3.48, clv, 0.01)

	// Price drifted against the bet
	clv, err = oddsmath.CLVCents(-110, 100)
	require.NoError(t, err)
	assert.Less(t, clv, 0.0)
}
