package models

// Adjustment domains
const (
	SituationalMin    = -2.0
	SituationalMax    = 2.0
	SituationalNetMin = -3.0
	SituationalNetMax = 3.0
	InjuryMin         = -3.0
	InjuryMax         = 0.0
)

// Factor is one named contribution to an adjustment, kept for auditing
type Factor struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// AdjustmentSet holds one team's contextual adjustments for one game.
// Values are clamped to their domains at construction and never change afterwards.
// SituationalCapped is set when either the team clamp or the game's net
// clamp fired; SituationalNetCapped records the net clamp alone.
type AdjustmentSet struct {
	GameID string `json:"game_id"`
	Team   string `json:"team"`

	Situational          float64  `json:"situational"`
	SituationalRaw       float64  `json:"situational_raw"`
	SituationalCapped    bool     `json:"situational_capped"`
	SituationalNetCapped bool     `json:"situational_net_capped"`
	SituationalFactors   []Factor `json:"situational_factors,omitempty"`

	// nil when the venue is indoor or no forecast exists
	WeatherTotal  *float64 `json:"weather_total"`
	WeatherSpread *float64 `json:"weather_spread"`

	InjuryImpact  float64  `json:"injury_impact"`
	InjuryRaw     float64  `json:"injury_raw"`
	InjuryCapped  bool     `json:"injury_capped"`
	InjuryFactors []Factor `json:"injury_factors,omitempty"`

	Reasons []Reason `json:"reasons,omitempty"`
}

// WeatherAdjustment is the game-level weather effect; Spread is per team
type WeatherAdjustment struct {
	Total      float64  `json:"total"`
	HomeSpread float64  `json:"home_spread"`
	AwaySpread float64  `json:"away_spread"`
	Factors    []Factor `json:"factors,omitempty"`
}

// NewAdjustmentSet builds a team's adjustment set, clamping the situational
// sum to [-2, 2] and the injury sum to [-3, 0]
func NewAdjustmentSet(gameID, team string, situational []Factor, injuries []Factor, weatherTotal, weatherSpread *float64) AdjustmentSet {
	set := AdjustmentSet{
		GameID:             gameID,
		Team:               team,
		SituationalFactors: situational,
		InjuryFactors:      injuries,
		WeatherTotal:       weatherTotal,
		WeatherSpread:      weatherSpread,
	}

	set.SituationalRaw = SumFactors(situational)
	set.Situational, set.SituationalCapped = Clamp(set.SituationalRaw, SituationalMin, SituationalMax)

	set.InjuryRaw = SumFactors(injuries)
	set.InjuryImpact, set.InjuryCapped = Clamp(set.InjuryRaw, InjuryMin, InjuryMax)

	if set.SituationalCapped || set.InjuryCapped {
		set.Reasons = append(set.Reasons, ReasonOutOfRange)
	}

	return set
}

// WithNetClamp returns a copy of the set flagged for a clamped situational net
func (a AdjustmentSet) WithNetClamp() AdjustmentSet {
	if !a.SituationalCapped && !a.InjuryCapped {
		a.Reasons = append(append([]Reason(nil), a.Reasons...), ReasonOutOfRange)
	}
	a.SituationalCapped = true
	a.SituationalNetCapped = true
	return a
}

// CapCount returns how many of the team's own clamps fired; the net clamp is
// counted once per game by the caller
func (a AdjustmentSet) CapCount() int {
	n := 0
	if a.SituationalRaw != a.Situational {
		n++
	}
	if a.InjuryCapped {
		n++
	}
	return n
}

// NetAdjustments is the home-minus-away view of both teams' adjustments
type NetAdjustments struct {
	Situational       float64  `json:"situational"`
	SituationalRaw    float64  `json:"situational_raw"`
	SituationalCapped bool     `json:"situational_capped"`
	WeatherSpread     *float64 `json:"weather_spread"`
	WeatherTotal      *float64 `json:"weather_total"`
	InjuryDiff        float64  `json:"injury_diff"`
}

// NewNetAdjustments derives the net adjustments from both sets, clamping the
// situational net to [-3, 3]
func NewNetAdjustments(home, away AdjustmentSet) NetAdjustments {
	net := NetAdjustments{
		SituationalRaw: home.Situational - away.Situational,
		InjuryDiff:     home.InjuryImpact - away.InjuryImpact,
		WeatherTotal:   home.WeatherTotal,
	}
	net.Situational, net.SituationalCapped = Clamp(net.SituationalRaw, SituationalNetMin, SituationalNetMax)

	if home.WeatherSpread != nil && away.WeatherSpread != nil {
		diff := *home.WeatherSpread - *away.WeatherSpread
		net.WeatherSpread = &diff
	}

	return net
}

// SpreadPoints returns the total net adjustment applied to a home margin
func (n NetAdjustments) SpreadPoints() float64 {
	points := n.Situational + n.InjuryDiff
	if n.WeatherSpread != nil {
		points += *n.WeatherSpread
	}
	return points
}

// SumFactors adds up factor points
func SumFactors(factors []Factor) float64 {
	sum := 0.0
	for _, f := range factors {
		sum += f.Points
	}
	return sum
}

// Clamp bounds v to [lo, hi] and reports whether it had to
func Clamp(v, lo, hi float64) (float64, bool) {
	if v < lo {
		return lo, true
	}
	if v > hi {
		return hi, true
	}
	return v, false
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
