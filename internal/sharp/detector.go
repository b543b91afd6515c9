package sharp

import (
	"math"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/config"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

// ThresholdSource returns the divergence thresholds for a league
type ThresholdSource interface {
	League(key string) config.LeagueConfig
}

// Detector classifies ticket/money divergence. Its output only feeds
// confidence; it never moves a model line.
type Detector struct {
	thresholds ThresholdSource
}

// NewDetector creates a detector using per-league thresholds
func NewDetector(thresholds ThresholdSource) *Detector {
	return &Detector{thresholds: thresholds}
}

// Detect classifies one market side's split for a league
func (d *Detector) Detect(league string, split models.TicketMoneySplit) models.SharpSignal {
	signal := models.SharpSignal{
		League:     league,
		GameID:     split.GameID,
		MarketType: split.MarketType,
		Side:       split.Side,
		TicketsPct: split.TicketsPct,
		MoneyPct:   split.MoneyPct,
		Strength:   models.StrengthNone,
	}

	if !validPct(split.TicketsPct) || !validPct(split.MoneyPct) {
		signal.Reason = models.ReasonOutOfRange
		return signal
	}

	signal.Divergence = split.MoneyPct - split.TicketsPct
	signal.Strength = Classify(math.Abs(signal.Divergence), d.thresholds.League(league).Sharp)

	switch {
	case signal.Divergence > 0:
		signal.BackedSide = split.Side
	case signal.Divergence < 0:
		signal.BackedSide = split.Side.Opposite()
	}

	return signal
}

// Classify maps a divergence magnitude to a strength
func Classify(magnitude float64, t config.SharpThresholds) models.Strength {
	switch {
	case magnitude >= t.VeryStrong:
		return models.StrengthVeryStrong
	case magnitude >= t.Strong:
		return models.StrengthStrong
	case magnitude >= t.Moderate:
		return models.StrengthModerate
	}
	return models.StrengthNone
}

func validPct(v float64) bool {
	return v >= 0 && v <= 100 && !math.IsNaN(v)
}
