package detector

import (
	"math"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/config"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/oddsmath"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"
)

// CompareInput is everything the comparator needs for one game and market
type CompareInput struct {
	GameID     string
	League     string
	MarketType models.MarketType
	Kickoff    time.Time

	// Expected home margin from ratings alone (home field and bias applied)
	RatingDiff float64
	Home       models.TeamRating
	Away       models.TeamRating
	Params     models.LeagueParams

	HomeAdjustments models.AdjustmentSet
	AwayAdjustments models.AdjustmentSet
	Net             models.NetAdjustments

	Line  models.MarketLine
	Sharp *models.SharpSignal

	Reasons []models.Reason
}

// Comparison is the comparator's result. Edge is nil when the market was
// skipped; Reason says why.
type Comparison struct {
	Edge         *models.Edge  `json:"edge,omitempty"`
	Reason       models.Reason `json:"reason,omitempty"`
	RawModelLine float64       `json:"raw_model_line"`
	MarketLine   float64       `json:"market_line"`
	RawEdge      float64       `json:"raw_edge"`
}

// Comparator turns a model line and a market line into a confidence-weighted
// edge, deferring to the market when the two disagree too much
type Comparator struct {
	market     config.MarketConfig
	confidence config.ConfidenceConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewComparator creates a comparator
func NewComparator(market config.MarketConfig, confidence config.ConfidenceConfig, log zerolog.Logger) *Comparator {
	return &Comparator{
		market:     market,
		confidence: confidence,
		log:        log.With().Str("component", "comparator").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Compare computes the edge for one market of one game
func (c *Comparator) Compare(in CompareInput) Comparison {
	modelLine, marketLine, ok := c.lines(in)
	if !ok {
		return Comparison{Reason: models.ReasonNoMarket}
	}

	raw := modelLine - marketLine
	out := Comparison{RawModelLine: modelLine, MarketLine: marketLine, RawEdge: raw}

	magnitude := math.Abs(raw)
	if magnitude > c.market.DiscardThreshold {
		out.Reason = models.ReasonSuspiciousDisagreement
		c.log.Warn().
			Str("game_id", in.GameID).
			Str("market", string(in.MarketType)).
			Float64("model_line", modelLine).
			Float64("market_line", marketLine).
			Float64("raw_edge", raw).
			Msg("disagreement beyond discard threshold, market skipped")
		return out
	}

	line := modelLine
	blended := false
	if magnitude > c.market.BlendThreshold {
		line = c.market.ModelWeight*modelLine + (1-c.market.ModelWeight)*marketLine
		blended = true
	}

	signed := line - marketLine
	if signed == 0 {
		out.Reason = models.ReasonNoPlay
		return out
	}

	side := positiveSide(in.MarketType)
	if signed < 0 {
		side = side.Opposite()
	}

	edge := &models.Edge{
		GameID:       in.GameID,
		League:       in.League,
		HomeTeam:     in.Home.Team,
		AwayTeam:     in.Away.Team,
		MarketType:   in.MarketType,
		Side:         side,
		ModelLine:    line,
		RawModelLine: modelLine,
		MarketLine:   marketLine,
		RawEdge:      raw,
		EdgePoints:   math.Abs(signed),
		Blended:      blended,
		Price:        in.Line.SidePrice(in.MarketType, side),
		BetLine:      in.Line.SideLine(in.MarketType, side),
		Kickoff:      in.Kickoff,
		ComputedAt:   c.now(),
		Reasons:      reasons(in),
	}
	edge.Confidence = c.Confidence(in, side)

	out.Edge = edge
	return out
}

// lines returns the model and market numbers for the input's market
func (c *Comparator) lines(in CompareInput) (model, market float64, ok bool) {
	switch in.MarketType {
	case models.MarketSpread:
		if !in.Line.HasSpread() {
			return 0, 0, false
		}
		return in.RatingDiff + in.Net.SpreadPoints(), in.Line.HomeMargin(), true

	case models.MarketTotal:
		if !in.Line.HasTotal() {
			return 0, 0, false
		}
		return ModelTotal(in.Home, in.Away, in.Params, in.Net.WeatherTotal), in.Line.Total, true

	case models.MarketMoneyline:
		if !in.Line.HasMoneyline() {
			return 0, 0, false
		}
		margin, err := ImpliedMargin(in.Line.MoneylineHome, in.Line.MoneylineAway, in.Params.MarginStdDev)
		if err != nil {
			c.log.Debug().Err(err).Str("game_id", in.GameID).Msg("moneyline not convertible to a margin")
			return 0, 0, false
		}
		return in.RatingDiff + in.Net.SpreadPoints(), margin, true
	}
	return 0, 0, false
}

// Confidence scores an edge on side from rating maturity, adjustment clamps
// and ticket/money divergence, bounded to [0, 1]
func (c *Comparator) Confidence(in CompareInput, side models.Side) float64 {
	cfg := c.confidence

	maturity := float64(min(in.Home.GamesPlayed, in.Away.GamesPlayed)) / float64(cfg.MaturityGames)
	if maturity > 1 {
		maturity = 1
	}

	caps := in.HomeAdjustments.CapCount() + in.AwayAdjustments.CapCount()
	if in.Net.SituationalCapped {
		caps++
	}

	score := cfg.Base + cfg.MaturityWeight*maturity - cfg.CapPenalty*float64(caps)
	score += c.sharpAdjustment(in.Sharp, in.MarketType, side)

	score, _ = models.Clamp(score, 0, 1)
	return score
}

func (c *Comparator) sharpAdjustment(signal *models.SharpSignal, market models.MarketType, side models.Side) float64 {
	if signal == nil || signal.MarketType != market || signal.BackedSide == "" {
		return 0
	}

	var weight float64
	switch signal.Strength {
	case models.StrengthModerate:
		weight = c.confidence.SharpModerate
	case models.StrengthStrong:
		weight = c.confidence.SharpStrong
	case models.StrengthVeryStrong:
		weight = c.confidence.SharpVeryStrong
	}

	if signal.BackedSide == side {
		return weight
	}
	return -weight
}

// ModelTotal is the expected combined score: each side's expected points are
// the league average plus its offense minus the opponent's defense
func ModelTotal(home, away models.TeamRating, params models.LeagueParams, weather *float64) float64 {
	total := 2*params.AveragePoints + home.Offensive + away.Offensive - home.Defensive - away.Defensive
	if weather != nil {
		total += *weather
	}
	return total
}

// ImpliedMargin converts a two-way moneyline into the home margin it implies,
// treating the final margin as normally distributed with stdDev
func ImpliedMargin(homePrice, awayPrice int, stdDev float64) (float64, error) {
	homeProb, _, err := oddsmath.NoVigTwoWay(homePrice, awayPrice)
	if err != nil {
		return 0, err
	}
	margin := distuv.Normal{Mu: 0, Sigma: stdDev}
	return margin.Quantile(homeProb), nil
}

// WinProbability is the probability the home team wins given an expected margin
func WinProbability(homeMargin, stdDev float64) float64 {
	margin := distuv.Normal{Mu: homeMargin, Sigma: stdDev}
	return 1 - margin.CDF(0)
}

func positiveSide(market models.MarketType) models.Side {
	if market == models.MarketTotal {
		return models.SideOver
	}
	return models.SideHome
}

func reasons(in CompareInput) []models.Reason {
	var out []models.Reason
	seen := make(map[models.Reason]bool)
	for _, r := range in.Reasons {
		if r != models.ReasonNone && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
