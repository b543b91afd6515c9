package models

// MarketType identifies the wagering market an edge belongs to
type MarketType string

const (
	MarketSpread    MarketType = "SPREAD"
	MarketTotal     MarketType = "TOTAL"
	MarketMoneyline MarketType = "MONEYLINE"
)

// Side is the side of a market a wager backs
type Side string

const (
	SideHome  Side = "HOME"
	SideAway  Side = "AWAY"
	SideOver  Side = "OVER"
	SideUnder Side = "UNDER"
)

// Opposite returns the other side of the same market
func (s Side) Opposite() Side {
	switch s {
	case SideHome:
		return SideAway
	case SideAway:
		return SideHome
	case SideOver:
		return SideUnder
	case SideUnder:
		return SideOver
	}
	return s
}

// Strength classifies how meaningful a ticket/money divergence is
type Strength string

const (
	StrengthNone       Strength = "NONE"
	StrengthModerate   Strength = "MODERATE"
	StrengthStrong     Strength = "STRONG"
	StrengthVeryStrong Strength = "VERY_STRONG"
)

// Tier is the recommendation bucket assigned to an edge
type Tier string

const (
	TierNoPlay   Tier = "NO_PLAY"
	TierLean     Tier = "LEAN"
	TierModerate Tier = "MODERATE"
	TierStrong   Tier = "STRONG"
	TierMaxBet   Tier = "MAX_BET"
)

// tierOrder lists tiers from weakest to strongest
var tierOrder = []Tier{TierNoPlay, TierLean, TierModerate, TierStrong, TierMaxBet}

// Rank returns the position of the tier (NO_PLAY = 0, MAX_BET = 4)
func (t Tier) Rank() int {
	for i, tier := range tierOrder {
		if tier == t {
			return i
		}
	}
	return 0
}

// Downgrade returns the tier one level below t (NO_PLAY stays NO_PLAY)
func (t Tier) Downgrade() Tier {
	rank := t.Rank()
	if rank == 0 {
		return TierNoPlay
	}
	return tierOrder[rank-1]
}

// Outcome is the graded result of a wager
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
	OutcomePush Outcome = "PUSH"
)

// InjuryStatus is the official availability designation of a player
type InjuryStatus string

const (
	StatusOut          InjuryStatus = "OUT"
	StatusDoubtful     InjuryStatus = "DOUBTFUL"
	StatusQuestionable InjuryStatus = "QUESTIONABLE"
	StatusProbable     InjuryStatus = "PROBABLE"
)

// PrecipType is the forecast precipitation kind
type PrecipType string

const (
	PrecipNone PrecipType = "NONE"
	PrecipRain PrecipType = "RAIN"
	PrecipSnow PrecipType = "SNOW"
)

// Reason is a machine-readable code explaining why the engine
// resolved, clamped, skipped or blocked something
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonMissingData            Reason = "MISSING_DATA"
	ReasonOutOfRange             Reason = "OUT_OF_RANGE"
	ReasonSuspiciousDisagreement Reason = "SUSPICIOUS_DISAGREEMENT"
	ReasonBankrollStopLoss       Reason = "BANKROLL_STOP_LOSS"
	ReasonBankrollWeeklyCap      Reason = "BANKROLL_WEEKLY_CAP"
	ReasonNoPlay                 Reason = "NO_PLAY"
	ReasonNoMarket               Reason = "NO_MARKET"
)
