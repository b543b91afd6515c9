package settlement_test

import (
	"testing"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/settlement"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		name  string
		wager settlement.Wager
		home  int
		away  int
		want  models.Outcome
	}{
		{"Home favorite covers", settlement.Wager{MarketType: models.MarketSpread, Side: models.SideHome, Line: -3}, 24, 20, models.OutcomeWin},
		{"Home favorite pushes", settlement.Wager{MarketType: models.MarketSpread, Side: models.SideHome, Line: -3}, 23, 20, models.OutcomePush},
		{"Home favorite fails", settlement.Wager{MarketType: models.MarketSpread, Side: models.SideHome, Line: -3}, 22, 20, models.OutcomeLoss},
		{"Away dog covers in loss", settlement.Wager{MarketType: models.MarketSpread, Side: models.SideAway, Line: 3.5}, 24, 21, models.OutcomeWin},
		{"Over wins", settlement.Wager{MarketType: models.MarketTotal, Side: models.SideOver, Line: 44.5}, 24, 21, models.OutcomeWin},
		{"Under loses", settlement.Wager{MarketType: models.MarketTotal, Side: models.SideUnder, Line: 44.5}, 24, 21, models.OutcomeLoss},
		{"Total push", settlement.Wager{MarketType: models.MarketTotal, Side: models.SideUnder, Line: 45}, 24, 21, models.OutcomePush},
		{"Moneyline away win", settlement.Wager{MarketType: models.MarketMoneyline, Side: models.SideAway}, 17, 20, models.OutcomeWin},
		{"Moneyline tie pushes", settlement.Wager{MarketType: models.MarketMoneyline, Side: models.SideHome}, 20, 20, models.OutcomePush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := settlement.Grade(tt.wager, tt.home, tt.away)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrade_InvalidInputs(t *testing.T) {
	_, err := settlement.Grade(settlement.Wager{MarketType: "PROP", Side: models.SideHome}, 1, 0)
	assert.Error(t, err)

	_, err = settlement.Grade(settlement.Wager{MarketType: models.MarketTotal, Side: models.SideHome, Line: 40}, 21, 20)
	assert.Error(t, err)
}

func TestSettle_ProfitLoss(t *testing.T) {
	stake := decimal.NewFromInt(110)

	outcome, pl, err := settlement.Settle(settlement.Wager{
		MarketType: models.MarketSpread, Side: models.SideHome, Line: -2.5, Price: -110, Stake: stake,
	}, 27, 20)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWin, outcome)
	assert.True(t, pl.Equal(decimal.NewFromInt(100)))

	outcome, pl, err = settlement.Settle(settlement.Wager{
		MarketType: models.MarketSpread, Side: models.SideHome, Line: -2.5, Price: -110, Stake: stake,
	}, 21, 20)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeLoss, outcome)
	assert.True(t, pl.Equal(decimal.NewFromInt(-110)))

	outcome, pl, err = settlement.Settle(settlement.Wager{
		MarketType: models.MarketTotal, Side: models.SideOver, Line: 41, Price: -110, Stake: stake,
	}, 21, 20)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePush, outcome)
	assert.True(t, pl.IsZero())
}
