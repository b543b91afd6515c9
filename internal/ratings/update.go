package ratings

import (
	"math"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

// Smoothing and regression constants
const (
	HistoryWeight = 0.90
	SignalWeight  = 0.10

	// MaturityGames is the sample size at which a rating is fully trusted
	MaturityGames = 12

	ModerateDeviation  = 20.0
	ModerateRegression = 0.10
	ExtremeDeviation   = 30.0
	ExtremeRegression  = 0.20
)

// Signals are the single-game observations a result produces for one team
type Signals struct {
	Overall   float64
	Offensive float64
	Defensive float64
}

// GameSignals derives team's observed strength from a result, adjusting the
// margin for the opponent's rating and home field
func GameSignals(team, opponent models.TeamRating, result models.GameResult, params models.LeagueParams) Signals {
	pointsFor := float64(result.PointsFor(team.Team))
	pointsAgainst := float64(result.PointsAgainst(team.Team))
	margin := pointsFor - pointsAgainst

	homeAdj := 0.0
	if !result.NeutralSite {
		if result.HomeTeam == team.Team {
			homeAdj = team.HomeFieldAdvantage
		} else {
			homeAdj = -opponent.HomeFieldAdvantage
		}
	}

	return Signals{
		Overall:   margin + opponent.Overall - homeAdj,
		Offensive: pointsFor - params.AveragePoints + opponent.Defensive,
		Defensive: params.AveragePoints - pointsAgainst + opponent.Offensive,
	}
}

// Smooth applies the exponential filter: 90% history, 10% new signal
func Smooth(old, signal float64) float64 {
	return HistoryWeight*old + SignalWeight*signal
}

// Regress pulls a smoothed value toward mean. Below MaturityGames the value
// is weighted by gamesPlayed/MaturityGames; far-from-mean values are then
// pulled in a further 10% (beyond 20 points) or 20% (beyond 30 points).
func Regress(value, mean float64, gamesPlayed int) float64 {
	r := value
	if gamesPlayed < MaturityGames {
		confidence := float64(gamesPlayed) / MaturityGames
		r = mean + confidence*(r-mean)
	}

	deviation := math.Abs(r - mean)
	switch {
	case deviation > ExtremeDeviation:
		r = mean + (1-ExtremeRegression)*(r-mean)
	case deviation > ModerateDeviation:
		r = mean + (1-ModerateRegression)*(r-mean)
	}
	return r
}

// Update returns prior's rating after result. It is pure: prior and
// opponent are not modified and nothing outside the arguments is read.
func Update(prior, opponent models.TeamRating, result models.GameResult, params models.LeagueParams) models.TeamRating {
	signals := GameSignals(prior, opponent, result, params)

	next := prior
	next.GamesPlayed = prior.GamesPlayed + 1
	next.LastUpdated = result.PlayedAt
	if next.LastUpdated.IsZero() {
		next.LastUpdated = time.Now().UTC()
	}

	next.Smoothed = Smooth(prior.Smoothed, signals.Overall)
	next.SmoothedOffensive = Smooth(prior.SmoothedOffensive, signals.Offensive)
	next.SmoothedDefensive = Smooth(prior.SmoothedDefensive, signals.Defensive)

	next.Overall = Regress(next.Smoothed, params.MeanRating, next.GamesPlayed)
	next.Offensive = Regress(next.SmoothedOffensive, 0, next.GamesPlayed)
	next.Defensive = Regress(next.SmoothedDefensive, 0, next.GamesPlayed)

	return next
}

// Default returns a league-average rating for a team with no history
func Default(team, league string, params models.LeagueParams) models.TeamRating {
	return models.TeamRating{
		Team:               team,
		League:             league,
		Overall:            params.MeanRating,
		HomeFieldAdvantage: params.HomeFieldAdvantage,
		Smoothed:           params.MeanRating,
	}
}
