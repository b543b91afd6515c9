package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Edge is the model's disagreement with the market for one game and market.
// ModelLine and MarketLine are home margins for SPREAD and MONEYLINE and
// combined points for TOTAL.
type Edge struct {
	GameID       string     `json:"game_id"`
	League       string     `json:"league"`
	HomeTeam     string     `json:"home_team"`
	AwayTeam     string     `json:"away_team"`
	MarketType   MarketType `json:"market_type"`
	Side         Side       `json:"side"`
	ModelLine    float64    `json:"model_line"`
	RawModelLine float64    `json:"raw_model_line"`
	MarketLine   float64    `json:"market_line"`
	RawEdge      float64    `json:"raw_edge"`
	EdgePoints   float64    `json:"edge_points"`
	Confidence   float64    `json:"confidence"`
	Blended      bool       `json:"blended"`
	Price        int        `json:"price"`
	BetLine      float64    `json:"bet_line"`
	Kickoff      time.Time  `json:"kickoff"`
	ComputedAt   time.Time  `json:"computed_at"`
	Reasons      []Reason   `json:"reasons,omitempty"`
}

// BetRecommendation is a sized wager for an edge. A blocked recommendation
// carries a zero stake and the reason it was blocked.
type BetRecommendation struct {
	ID             string          `json:"id"`
	Edge           Edge            `json:"edge"`
	Tier           Tier            `json:"tier"`
	Side           Side            `json:"side"`
	KellyFraction  float64         `json:"kelly_fraction"`
	StakeAmount    decimal.Decimal `json:"stake_amount"`
	BankrollAtTime decimal.Decimal `json:"bankroll_at_time"`
	Blocked        bool            `json:"blocked"`
	BlockReason    Reason          `json:"block_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Bankroll is the sizing state for the current week
type Bankroll struct {
	Current       decimal.Decimal `json:"current"`
	WeekStart     decimal.Decimal `json:"week_start"`
	WeekExposure  decimal.Decimal `json:"week_exposure"`
	WeekStartedAt time.Time       `json:"week_started_at"`
}

// Drawdown returns the week-to-date loss as a fraction of the week-start balance
func (b Bankroll) Drawdown() float64 {
	if !b.WeekStart.IsPositive() {
		return 0
	}
	loss := b.WeekStart.Sub(b.Current)
	if !loss.IsPositive() {
		return 0
	}
	return loss.Div(b.WeekStart).InexactFloat64()
}
