package adjustments

import (
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/rs/zerolog"
)

// Result is the full contextual adjustment for one game
type Result struct {
	Home    models.AdjustmentSet      `json:"home"`
	Away    models.AdjustmentSet      `json:"away"`
	Net     models.NetAdjustments     `json:"net"`
	Weather *models.WeatherAdjustment `json:"weather,omitempty"`
	Reasons []models.Reason           `json:"reasons,omitempty"`
}

// CapCount returns the number of clamps that fired for the game
func (r Result) CapCount() int {
	n := r.Home.CapCount() + r.Away.CapCount()
	if r.Net.SituationalCapped {
		n++
	}
	return n
}

// Engine computes situational, weather and injury adjustments. It holds no
// state and is safe for concurrent use.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates an adjustment engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "adjustments").Logger(),
	}
}

// Compute builds both teams' adjustment sets and the net view for a game
func (e *Engine) Compute(profile contracts.LeagueProfile, input models.GameInput) Result {
	game := input.Context

	weather, weatherReason := Weather(game, input.Weather)

	var homeWeather, awayWeather, weatherTotal *float64
	if weather != nil {
		weatherTotal = models.Float(weather.Total)
		homeWeather = models.Float(weather.HomeSpread)
		awayWeather = models.Float(weather.AwaySpread)
	}

	home := models.NewAdjustmentSet(
		game.GameID,
		game.Home.Team,
		SituationalFactors(game, true),
		InjuryFactors(profile, input.InjuriesFor(game.Home.Team)),
		weatherTotal,
		homeWeather,
	)
	away := models.NewAdjustmentSet(
		game.GameID,
		game.Away.Team,
		SituationalFactors(game, false),
		InjuryFactors(profile, input.InjuriesFor(game.Away.Team)),
		copyFloat(weatherTotal),
		awayWeather,
	)

	result := Result{
		Home:    home,
		Away:    away,
		Net:     models.NewNetAdjustments(home, away),
		Weather: weather,
	}
	if result.Net.SituationalCapped {
		result.Home = home.WithNetClamp()
		result.Away = away.WithNetClamp()
	}

	if weatherReason != models.ReasonNone {
		result.Reasons = append(result.Reasons, weatherReason)
		e.log.Debug().Str("game_id", game.GameID).Msg("outdoor game has no forecast, weather skipped")
	}
	if result.CapCount() > 0 {
		result.Reasons = append(result.Reasons, models.ReasonOutOfRange)
		e.log.Debug().
			Str("game_id", game.GameID).
			Float64("home_situational_raw", home.SituationalRaw).
			Float64("away_situational_raw", away.SituationalRaw).
			Float64("home_injury_raw", home.InjuryRaw).
			Float64("away_injury_raw", away.InjuryRaw).
			Msg("adjustment clamped")
	}

	return result
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return models.Float(*v)
}
