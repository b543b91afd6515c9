package contracts

import (
	"context"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

// LeagueProfile defines the league-specific constants the model needs
type LeagueProfile interface {
	// GetSportKey returns the feed key (e.g., "americanfootball_nfl")
	GetSportKey() string

	// GetDisplayName returns a human-readable league name
	GetDisplayName() string

	// GetParams returns the rating-scale constants
	GetParams() models.LeagueParams

	// InjuryValue returns the points a fully absent player of this
	// position and tier is worth (positive; callers negate)
	InjuryValue(position, tier string) float64
}

// LineSource provides the most recent market snapshot for a game
type LineSource interface {
	// LatestLine returns the newest snapshot; ok is false when none is known
	LatestLine(ctx context.Context, gameID string) (line models.MarketLine, ok bool, err error)
}

// Publisher fans detection output out to downstream consumers
type Publisher interface {
	PublishEdge(ctx context.Context, edge models.Edge) error
	PublishRecommendation(ctx context.Context, rec models.BetRecommendation) error
}

// Ledger persists recommendations, CLV records and rating snapshots
type Ledger interface {
	WriteRecommendation(ctx context.Context, rec models.BetRecommendation) error
	WriteCLVRecord(ctx context.Context, record models.CLVRecord) error
	WriteRatings(ctx context.Context, ratings []models.TeamRating) error
}

// BankrollStore persists bankroll snapshots
type BankrollStore interface {
	WriteBankroll(ctx context.Context, b models.Bankroll) error
}
