package americanfootball_nfl

import (
	"os"
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

const SportKey = "americanfootball_nfl"

// Profile holds NFL rating constants and the injury value table
type Profile struct {
	params   models.LeagueParams
	injuries map[string]map[string]float64
}

// NewProfile creates the NFL profile with defaults and environment overrides
func NewProfile() *Profile {
	return &Profile{
		params: models.LeagueParams{
			MeanRating:         0,
			HomeFieldAdvantage: getEnvFloat("NFL_HOME_FIELD_ADVANTAGE", 2.0),
			AveragePoints:      getEnvFloat("NFL_AVERAGE_POINTS", 22.5),
			MarginStdDev:       getEnvFloat("NFL_MARGIN_STD_DEV", 13.5),
		},
		injuries: injuryTable(),
	}
}

// injuryTable is points lost when a player is ruled out, by position then tier
func injuryTable() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"QB": {"elite": 4.5, "starter": 2.5, "depth": 0.5},
		"RB": {"elite": 2.5, "starter": 1.0, "depth": 0.25},
		"WR": {"elite": 2.0, "starter": 1.0, "depth": 0.25},
		"TE": {"elite": 1.5, "starter": 0.75, "depth": 0.25},
		"OL": {"elite": 1.5, "starter": 0.75, "depth": 0.25},
		"DL": {"elite": 1.5, "starter": 0.75, "depth": 0.25},
		"LB": {"elite": 1.0, "starter": 0.5, "depth": 0.25},
		"DB": {"elite": 1.5, "starter": 0.75, "depth": 0.25},
		"K":  {"elite": 0.5, "starter": 0.25, "depth": 0},
	}
}

// GetSportKey implements LeagueProfile
func (p *Profile) GetSportKey() string {
	return SportKey
}

// GetDisplayName implements LeagueProfile
func (p *Profile) GetDisplayName() string {
	return "NFL"
}

// GetParams implements LeagueProfile
func (p *Profile) GetParams() models.LeagueParams {
	return p.params
}

// InjuryValue implements LeagueProfile. Unknown positions are worth nothing.
func (p *Profile) InjuryValue(position, tier string) float64 {
	tiers, ok := p.injuries[strings.ToUpper(position)]
	if !ok {
		return 0
	}
	return tiers[strings.ToLower(tier)]
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
