package americanfootball_ncaaf

import (
	"os"
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

const SportKey = "americanfootball_ncaaf"

// Profile holds college football rating constants. Rating spreads and
// scoring are wider than the NFL and quarterback value is higher.
type Profile struct {
	params   models.LeagueParams
	injuries map[string]map[string]float64
}

// NewProfile creates the NCAAF profile with defaults and environment overrides
func NewProfile() *Profile {
	return &Profile{
		params: models.LeagueParams{
			MeanRating:         0,
			HomeFieldAdvantage: getEnvFloat("NCAAF_HOME_FIELD_ADVANTAGE", 2.5),
			AveragePoints:      getEnvFloat("NCAAF_AVERAGE_POINTS", 28.0),
			MarginStdDev:       getEnvFloat("NCAAF_MARGIN_STD_DEV", 16.0),
		},
		injuries: map[string]map[string]float64{
			"QB": {"elite": 5.0, "starter": 3.0, "depth": 0.5},
			"RB": {"elite": 2.0, "starter": 1.0, "depth": 0.25},
			"WR": {"elite": 2.0, "starter": 0.75, "depth": 0.25},
			"TE": {"elite": 1.0, "starter": 0.5},
			"OL": {"elite": 1.0, "starter": 0.5},
			"DL": {"elite": 1.5, "starter": 0.5},
			"LB": {"elite": 1.0, "starter": 0.5},
			"DB": {"elite": 1.0, "starter": 0.5},
		},
	}
}

// GetSportKey implements LeagueProfile
func (p *Profile) GetSportKey() string {
	return SportKey
}

// GetDisplayName implements LeagueProfile
func (p *Profile) GetDisplayName() string {
	return "NCAAF"
}

// GetParams implements LeagueProfile
func (p *Profile) GetParams() models.LeagueParams {
	return p.params
}

// InjuryValue implements LeagueProfile
func (p *Profile) InjuryValue(position, tier string) float64 {
	return p.injuries[strings.ToUpper(position)][strings.ToLower(tier)]
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
