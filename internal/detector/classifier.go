package detector

import (
	"math"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/config"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

// ThresholdSource returns a league's tier and divergence thresholds
type ThresholdSource interface {
	League(key string) config.LeagueConfig
}

// Classifier maps edge magnitude and confidence to a tier
type Classifier struct {
	thresholds    ThresholdSource
	lowConfidence float64
}

// NewClassifier creates a classifier. Edges below lowConfidence drop one tier.
func NewClassifier(thresholds ThresholdSource, lowConfidence float64) *Classifier {
	return &Classifier{
		thresholds:    thresholds,
		lowConfidence: lowConfidence,
	}
}

// Classify returns the recommendation tier for an edge. Blended edges never
// exceed STRONG and low confidence drops exactly one tier.
func (c *Classifier) Classify(edge models.Edge) models.Tier {
	tier := TierFor(math.Abs(edge.EdgePoints), c.thresholds.League(edge.League).Tiers)

	if edge.Blended && tier == models.TierMaxBet {
		tier = models.TierStrong
	}
	if edge.Confidence < c.lowConfidence {
		tier = tier.Downgrade()
	}
	return tier
}

// TierFor applies a tier table to an edge magnitude
func TierFor(points float64, t config.TierThresholds) models.Tier {
	switch {
	case points >= t.MaxBet:
		return models.TierMaxBet
	case points >= t.Strong:
		return models.TierStrong
	case points >= t.Moderate:
		return models.TierModerate
	case points >= t.Lean:
		return models.TierLean
	}
	return models.TierNoPlay
}
