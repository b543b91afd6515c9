package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CLVRecord tracks a placed recommendation from placement through grading.
// It is written once at placement, then updated with the closing line and
// finally with the result.
type CLVRecord struct {
	ID               string     `json:"id"`
	RecommendationID string     `json:"recommendation_id"`
	GameID           string     `json:"game_id"`
	League           string     `json:"league"`
	MarketType       MarketType `json:"market_type"`
	Side             Side       `json:"side"`
	HomeTeam         string     `json:"home_team,omitempty"`
	AwayTeam         string     `json:"away_team,omitempty"`
	Kickoff          time.Time  `json:"kickoff"`

	// Line and price at placement. For SPREAD the line is the bet side's spread.
	OpeningLine  float64         `json:"opening_line"`
	OpeningPrice int             `json:"opening_price"`
	ModelLine    *float64        `json:"model_line,omitempty"`
	Stake        decimal.Decimal `json:"stake"`
	PlacedAt     time.Time       `json:"placed_at"`

	ClosingLine  *float64   `json:"closing_line,omitempty"`
	ClosingPrice *int       `json:"closing_price,omitempty"`
	ClosingHome  *float64   `json:"closing_home_margin,omitempty"`
	CLV          *float64   `json:"clv,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`

	Result     *Outcome         `json:"result,omitempty"`
	ProfitLoss *decimal.Decimal `json:"profit_loss,omitempty"`
	GradedAt   *time.Time       `json:"graded_at,omitempty"`
}

// IsClosed reports whether the closing line has been captured
func (r CLVRecord) IsClosed() bool {
	return r.CLV != nil
}

// IsGraded reports whether the final result has been recorded
func (r CLVRecord) IsGraded() bool {
	return r.Result != nil
}

// CLVSummary aggregates the ledger. RollingCLV over the recent window is the
// primary long-run measure, independent of win rate.
type CLVSummary struct {
	Records         int                `json:"records"`
	Closed          int                `json:"closed"`
	Graded          int                `json:"graded"`
	Wins            int                `json:"wins"`
	Losses          int                `json:"losses"`
	Pushes          int                `json:"pushes"`
	WinRate         float64            `json:"win_rate"`
	AverageCLV      float64            `json:"average_clv"`
	RollingCLV      float64            `json:"rolling_clv"`
	RollingWindow   int                `json:"rolling_window"`
	CLVStdDev       float64            `json:"clv_std_dev"`
	PositiveCLVRate float64            `json:"positive_clv_rate"`
	TotalStaked     decimal.Decimal    `json:"total_staked"`
	ProfitLoss      decimal.Decimal    `json:"profit_loss"`
	ROI             float64            `json:"roi"`
	SuggestedBias   map[string]float64 `json:"suggested_bias,omitempty"`
}
