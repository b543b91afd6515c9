package adjustments

import "github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"

// Situational factor point values
const (
	RestEdgeLarge  = 1.0 // rest advantage of 3+ days
	RestEdgeSmall  = 0.5 // rest advantage of 1-2 days
	ShortWeek      = -1.0
	OffBye         = 1.0
	Divisional     = -0.5 // home field compresses in familiar matchups
	Lookahead      = -1.0
	Letdown        = -1.0
	TravelShort    = -0.5 // 500-1500 miles
	TravelLong     = -1.0 // 1500-2500 miles
	TravelExtreme  = -1.5 // beyond 2500 miles
	travelNone     = 500.0
	travelShortMax = 1500.0
	travelLongMax  = 2500.0
)

// RestFactor returns the points for a team's rest-day advantage over its opponent
func RestFactor(teamRest, opponentRest int) float64 {
	diff := teamRest - opponentRest
	switch {
	case diff >= 3:
		return RestEdgeLarge
	case diff >= 1:
		return RestEdgeSmall
	case diff <= -3:
		return -RestEdgeLarge
	case diff <= -1:
		return -RestEdgeSmall
	}
	return 0
}

// TravelFactor returns the points for a team's travel distance
func TravelFactor(miles float64) float64 {
	switch {
	case miles < travelNone:
		return 0
	case miles < travelShortMax:
		return TravelShort
	case miles < travelLongMax:
		return TravelLong
	}
	return TravelExtreme
}

// SituationalFactors lists the schedule factors that apply to one team.
// Rest is only compared when both teams report it.
func SituationalFactors(game models.GameContext, home bool) []models.Factor {
	team, opponent := game.Home, game.Away
	if !home {
		team, opponent = game.Away, game.Home
	}

	var factors []models.Factor
	add := func(name string, points float64) {
		if points != 0 {
			factors = append(factors, models.Factor{Name: name, Points: points})
		}
	}

	if team.RestDays > 0 && opponent.RestDays > 0 {
		add("rest_differential", RestFactor(team.RestDays, opponent.RestDays))
	}
	add("travel", TravelFactor(team.TravelMiles))
	if team.ShortWeek {
		add("short_week", ShortWeek)
	}
	if team.OffBye {
		add("off_bye", OffBye)
	}
	if home && !game.NeutralSite && (game.Divisional || game.Rivalry) {
		add("divisional", Divisional)
	}
	if team.Lookahead {
		add("lookahead", Lookahead)
	}
	if team.Letdown {
		add("letdown", Letdown)
	}

	return factors
}
