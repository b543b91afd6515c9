package adjustments

import "github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"

// Weather point values
const (
	WindSpreadPenalty = -0.5
	RainPenalty       = -1.5
	SnowPenalty       = -3.0

	windSpreadThreshold = 15.0
	precipThreshold     = 60.0
)

// TemperatureFactor returns the total adjustment for a kickoff temperature (°F)
func TemperatureFactor(tempF float64) float64 {
	switch {
	case tempF < 20:
		return -4
	case tempF < 25:
		return -3
	case tempF < 32:
		return -2
	case tempF < 40:
		return -1
	}
	return 0
}

// WindFactor returns the total adjustment for a sustained wind speed (mph)
func WindFactor(windMPH float64) float64 {
	switch {
	case windMPH > 20:
		return -5
	case windMPH >= 15:
		return -3
	case windMPH >= 10:
		return -1
	}
	return 0
}

// PrecipFactor returns the total adjustment for likely precipitation
func PrecipFactor(probability float64, kind models.PrecipType) float64 {
	if probability <= precipThreshold {
		return 0
	}
	switch kind {
	case models.PrecipSnow:
		return SnowPenalty
	case models.PrecipRain:
		return RainPenalty
	}
	return 0
}

// Weather computes the game's weather adjustment. Indoor venues return nil
// with no reason; outdoor games with no forecast return nil and MISSING_DATA.
// The result depends only on its inputs.
func Weather(game models.GameContext, forecast *models.WeatherForecast) (*models.WeatherAdjustment, models.Reason) {
	if game.Venue.Indoor {
		return nil, models.ReasonNone
	}
	if forecast == nil {
		return nil, models.ReasonMissingData
	}

	adj := &models.WeatherAdjustment{}
	add := func(name string, points float64) {
		if points != 0 {
			adj.Total += points
			adj.Factors = append(adj.Factors, models.Factor{Name: name, Points: points})
		}
	}

	add("temperature", TemperatureFactor(forecast.TemperatureF))
	add("wind", WindFactor(forecast.WindMPH))
	add("precipitation", PrecipFactor(forecast.PrecipProbability, forecast.PrecipType))

	if forecast.WindMPH >= windSpreadThreshold {
		if !game.Home.RunHeavy {
			adj.HomeSpread = WindSpreadPenalty
		}
		if !game.Away.RunHeavy {
			adj.AwaySpread = WindSpreadPenalty
		}
	}

	return adj, models.ReasonNone
}
