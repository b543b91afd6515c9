package models

import "time"

// TeamRating is a team's strength on the point-spread scale (0 = league average).
// Only the ratings store mutates ratings; everywhere else treats them as values.
type TeamRating struct {
	Team               string    `json:"team"`
	League             string    `json:"league"`
	Overall            float64   `json:"overall"`
	Offensive          float64   `json:"offensive"`
	Defensive          float64   `json:"defensive"`
	HomeFieldAdvantage float64   `json:"home_field_advantage"`
	GamesPlayed        int       `json:"games_played"`
	LastUpdated        time.Time `json:"last_updated"`

	// Filter state before regression toward the league mean
	Smoothed          float64 `json:"smoothed"`
	SmoothedOffensive float64 `json:"smoothed_offensive"`
	SmoothedDefensive float64 `json:"smoothed_defensive"`
}

// GameResult is a completed game used to update ratings and grade wagers
type GameResult struct {
	GameID      string    `json:"game_id"`
	League      string    `json:"league"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	HomeScore   int       `json:"home_score"`
	AwayScore   int       `json:"away_score"`
	NeutralSite bool      `json:"neutral_site"`
	PlayedAt    time.Time `json:"played_at"`
}

// Involves reports whether team played in the game
func (r GameResult) Involves(team string) bool {
	return r.HomeTeam == team || r.AwayTeam == team
}

// Opponent returns the other team in the game
func (r GameResult) Opponent(team string) string {
	if r.HomeTeam == team {
		return r.AwayTeam
	}
	return r.HomeTeam
}

// PointsFor returns the points scored by team
func (r GameResult) PointsFor(team string) int {
	if r.HomeTeam == team {
		return r.HomeScore
	}
	return r.AwayScore
}

// PointsAgainst returns the points allowed by team
func (r GameResult) PointsAgainst(team string) int {
	if r.HomeTeam == team {
		return r.AwayScore
	}
	return r.HomeScore
}
