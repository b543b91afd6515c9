package models

import "time"

// Venue describes where a game is played
type Venue struct {
	Name   string `json:"name"`
	Indoor bool   `json:"indoor"`
}

// TeamContext is one team's schedule situation going into a game
type TeamContext struct {
	Team        string  `json:"team"`
	RestDays    int     `json:"rest_days"`
	TravelMiles float64 `json:"travel_miles"`
	ShortWeek   bool    `json:"short_week"`
	OffBye      bool    `json:"off_bye"`
	Lookahead   bool    `json:"lookahead"`
	Letdown     bool    `json:"letdown"`
	RunHeavy    bool    `json:"run_heavy"`
}

// GameContext is a matchup. Home and away always come from the schedule feed
// and are never derived from the odds.
type GameContext struct {
	GameID      string      `json:"game_id"`
	League      string      `json:"league"`
	Home        TeamContext `json:"home"`
	Away        TeamContext `json:"away"`
	Venue       Venue       `json:"venue"`
	Kickoff     time.Time   `json:"kickoff"`
	NeutralSite bool        `json:"neutral_site"`
	Divisional  bool        `json:"divisional"`
	Rivalry     bool        `json:"rivalry"`
}

// WeatherForecast is the forecast for an outdoor game
type WeatherForecast struct {
	TemperatureF      float64    `json:"temperature_f"`
	WindMPH           float64    `json:"wind_mph"`
	PrecipProbability float64    `json:"precip_probability"` // 0-100
	PrecipType        PrecipType `json:"precip_type"`
}

// InjuryReport is one listed player
type InjuryReport struct {
	Team     string       `json:"team"`
	Player   string       `json:"player"`
	Position string       `json:"position"` // QB, RB, WR, TE, OL, DL, LB, DB, K
	Tier     string       `json:"tier"`     // elite, starter, depth
	Status   InjuryStatus `json:"status"`
}

// GameInput bundles everything collected for one matchup before detection
type GameInput struct {
	Context  GameContext        `json:"context"`
	Weather  *WeatherForecast   `json:"weather,omitempty"`
	Injuries []InjuryReport     `json:"injuries,omitempty"`
	Lines    []MarketLine       `json:"lines"`
	Splits   []TicketMoneySplit `json:"splits,omitempty"`
}

// InjuriesFor returns the reports listed for team
func (g GameInput) InjuriesFor(team string) []InjuryReport {
	var reports []InjuryReport
	for _, r := range g.Injuries {
		if r.Team == team {
			reports = append(reports, r)
		}
	}
	return reports
}

// SplitFor returns the ticket/money split for a market, if one was supplied
func (g GameInput) SplitFor(market MarketType) (TicketMoneySplit, bool) {
	for _, s := range g.Splits {
		if s.MarketType == market {
			return s, true
		}
	}
	return TicketMoneySplit{}, false
}
