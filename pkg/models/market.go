package models

import (
	"sort"
	"time"
)

// MarketLine is an immutable snapshot of one book's posted lines for a game.
// Spreads follow the usual convention: negative = favorite.
type MarketLine struct {
	GameID         string    `json:"game_id"`
	Book           string    `json:"book"`
	SpreadHome     float64   `json:"spread_home"`
	SpreadAway     float64   `json:"spread_away"`
	Total          float64   `json:"total"`
	MoneylineHome  int       `json:"moneyline_home"`
	MoneylineAway  int       `json:"moneyline_away"`
	SpreadHomeOdds int       `json:"spread_home_odds"`
	SpreadAwayOdds int       `json:"spread_away_odds"`
	OverOdds       int       `json:"over_odds"`
	UnderOdds      int       `json:"under_odds"`
	CapturedAt     time.Time `json:"captured_at"`
}

// HasSpread reports whether the snapshot carries a spread market
func (m MarketLine) HasSpread() bool {
	return m.SpreadHome != 0 || m.SpreadAway != 0 || m.SpreadHomeOdds != 0
}

// HasTotal reports whether the snapshot carries a totals market
func (m MarketLine) HasTotal() bool {
	return m.Total > 0
}

// HasMoneyline reports whether the snapshot carries a two-way moneyline
func (m MarketLine) HasMoneyline() bool {
	return m.MoneylineHome != 0 && m.MoneylineAway != 0
}

// HomeMargin returns the home team's expected margin implied by the spread
func (m MarketLine) HomeMargin() float64 {
	return -m.SpreadHome
}

// SideLine returns the number a bet on side was placed against: the side's
// own spread for SPREAD, the total for TOTAL and 0 for MONEYLINE
func (m MarketLine) SideLine(market MarketType, side Side) float64 {
	switch market {
	case MarketSpread:
		if side == SideAway {
			return m.SpreadAway
		}
		return m.SpreadHome
	case MarketTotal:
		return m.Total
	}
	return 0
}

// SidePrice returns the American odds posted for a side of a market
func (m MarketLine) SidePrice(market MarketType, side Side) int {
	switch market {
	case MarketSpread:
		if side == SideAway {
			return orStandard(m.SpreadAwayOdds)
		}
		return orStandard(m.SpreadHomeOdds)
	case MarketTotal:
		if side == SideUnder {
			return orStandard(m.UnderOdds)
		}
		return orStandard(m.OverOdds)
	case MarketMoneyline:
		if side == SideAway {
			return m.MoneylineAway
		}
		return m.MoneylineHome
	}
	return StandardPrice
}

// StandardPrice is the price assumed for a spread or total side with no posted odds
const StandardPrice = -110

func orStandard(price int) int {
	if price == 0 {
		return StandardPrice
	}
	return price
}

// LineHistory is a game's snapshots ordered by capture time
type LineHistory []MarketLine

// NewLineHistory copies and orders snapshots oldest first
func NewLineHistory(lines []MarketLine) LineHistory {
	history := make(LineHistory, len(lines))
	copy(history, lines)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CapturedAt.Before(history[j].CapturedAt)
	})
	return history
}

// Opening returns the earliest snapshot
func (h LineHistory) Opening() (MarketLine, bool) {
	if len(h) == 0 {
		return MarketLine{}, false
	}
	return h[0], true
}

// Current returns the latest snapshot
func (h LineHistory) Current() (MarketLine, bool) {
	if len(h) == 0 {
		return MarketLine{}, false
	}
	return h[len(h)-1], true
}

// SpreadMovement returns the change in the home spread from open to current
func (h LineHistory) SpreadMovement() float64 {
	open, ok := h.Opening()
	if !ok {
		return 0
	}
	current, _ := h.Current()
	return current.SpreadHome - open.SpreadHome
}

// TicketMoneySplit is the public betting split for one side of a market
type TicketMoneySplit struct {
	GameID     string     `json:"game_id"`
	MarketType MarketType `json:"market_type"`
	Side       Side       `json:"side"`
	TicketsPct float64    `json:"tickets_pct"`
	MoneyPct   float64    `json:"money_pct"`
}

// SharpSignal is the classified ticket/money divergence for a market side
type SharpSignal struct {
	League     string     `json:"league"`
	GameID     string     `json:"game_id"`
	MarketType MarketType `json:"market_type"`
	Side       Side       `json:"side"`
	TicketsPct float64    `json:"tickets_pct"`
	MoneyPct   float64    `json:"money_pct"`
	Divergence float64    `json:"divergence"`
	Strength   Strength   `json:"strength"`
	BackedSide Side       `json:"backed_side"`
	Reason     Reason     `json:"reason,omitempty"`
}
