package adjustments

import (
	"fmt"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

// StatusWeight is the probability a player with status misses the game.
// Uncertain designations count for nothing.
func StatusWeight(status models.InjuryStatus) float64 {
	switch status {
	case models.StatusOut:
		return 1.0
	case models.StatusDoubtful:
		return 0.75
	}
	return 0
}

// InjuryFactors converts a team's injury list into negative point factors
func InjuryFactors(profile contracts.LeagueProfile, reports []models.InjuryReport) []models.Factor {
	var factors []models.Factor
	for _, r := range reports {
		points := -profile.InjuryValue(r.Position, r.Tier) * StatusWeight(r.Status)
		if points == 0 {
			continue
		}
		factors = append(factors, models.Factor{
			Name:   fmt.Sprintf("%s %s (%s)", r.Position, r.Player, r.Status),
			Points: points,
		})
	}
	return factors
}
