package ratings

import (
	"fmt"
	"sort"
	"sync"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/registry"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/rs/zerolog"
)

// FallbackParams are used for leagues with no registered profile
var FallbackParams = models.LeagueParams{
	MeanRating:         0,
	HomeFieldAdvantage: 2.0,
	AveragePoints:      22.5,
	MarginStdDev:       13.5,
}

// Matchup is both teams' ratings and the home-margin differential
type Matchup struct {
	Home         models.TeamRating `json:"home"`
	Away         models.TeamRating `json:"away"`
	Differential float64           `json:"differential"`
	Bias         float64           `json:"bias"`
	Reasons      []models.Reason   `json:"reasons,omitempty"`
}

// Store holds team ratings keyed by league and team. Writes are expected
// only in the serialized rating-update phase; reads are snapshot-consistent.
type Store struct {
	ratings map[string]models.TeamRating
	bias    map[string]float64
	leagues *registry.LeagueRegistry
	log     zerolog.Logger
	mu      sync.RWMutex
}

// NewStore creates an empty ratings store
func NewStore(leagues *registry.LeagueRegistry, log zerolog.Logger) *Store {
	return &Store{
		ratings: make(map[string]models.TeamRating),
		bias:    make(map[string]float64),
		leagues: leagues,
		log:     log.With().Str("component", "ratings").Logger(),
	}
}

// Params returns the rating constants for a league
func (s *Store) Params(league string) models.LeagueParams {
	if s.leagues != nil {
		if profile, ok := s.leagues.Get(league); ok {
			return profile.GetParams()
		}
	}
	return FallbackParams
}

// Seed loads ratings from a feed or a prior snapshot, replacing existing
// entries. Ratings without filter state start the filter at their value.
func (s *Store) Seed(ratings []models.TeamRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range ratings {
		if r.Team == "" || r.League == "" {
			return fmt.Errorf("rating missing team or league: %+v", r)
		}
		if r.Smoothed == 0 && r.SmoothedOffensive == 0 && r.SmoothedDefensive == 0 {
			r.Smoothed = r.Overall
			r.SmoothedOffensive = r.Offensive
			r.SmoothedDefensive = r.Defensive
		}
		if r.HomeFieldAdvantage == 0 {
			r.HomeFieldAdvantage = s.Params(r.League).HomeFieldAdvantage
		}
		s.ratings[key(r.League, r.Team)] = r
	}

	s.log.Info().Int("count", len(ratings)).Msg("ratings seeded")
	return nil
}

// Get returns a team's rating. Unknown teams get the league default and
// ok is false.
func (s *Store) Get(league, team string) (models.TeamRating, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLocked(league, team)
}

func (s *Store) getLocked(league, team string) (models.TeamRating, bool) {
	if r, ok := s.ratings[key(league, team)]; ok {
		return r, true
	}
	return Default(team, league, s.Params(league)), false
}

// Snapshot returns a copy of the ratings for a league (all leagues when
// league is empty), strongest first
func (s *Store) Snapshot(league string) []models.TeamRating {
	s.mu.RLock()
	out := make([]models.TeamRating, 0, len(s.ratings))
	for _, r := range s.ratings {
		if league == "" || r.League == league {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall > out[j].Overall
		}
		return out[i].Team < out[j].Team
	})
	return out
}

// Matchup returns both ratings and the expected home margin:
// home - away + home field (unless neutral) - league bias
func (s *Store) Matchup(league, home, away string, neutral bool) Matchup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := Matchup{Bias: s.bias[league]}

	var homeKnown, awayKnown bool
	m.Home, homeKnown = s.getLocked(league, home)
	m.Away, awayKnown = s.getLocked(league, away)
	if !homeKnown || !awayKnown {
		m.Reasons = append(m.Reasons, models.ReasonMissingData)
	}

	m.Differential = m.Home.Overall - m.Away.Overall - m.Bias
	if !neutral {
		m.Differential += m.Home.HomeFieldAdvantage
	}
	return m
}

// Differential returns the expected home margin for a matchup
func (s *Store) Differential(league, home, away string, neutral bool) float64 {
	return s.Matchup(league, home, away, neutral).Differential
}

// SetBias sets the league's point correction, subtracted from every
// differential. It is set manually from CLV reporting.
func (s *Store) SetBias(league string, points float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bias[league] = points
	s.log.Info().Str("league", league).Float64("bias", points).Msg("bias correction set")
}

// Bias returns the league's point correction
func (s *Store) Bias(league string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bias[league]
}

// Update applies result to one team using the opponent's current rating.
// Unknown teams are created at the league default first.
func (s *Store) Update(team string, result models.GameResult) (models.TeamRating, error) {
	if !result.Involves(team) {
		return models.TeamRating{}, fmt.Errorf("team %s did not play in game %s", team, result.GameID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prior, _ := s.getLocked(result.League, team)
	opponent, _ := s.getLocked(result.League, result.Opponent(team))

	next := Update(prior, opponent, result, s.Params(result.League))
	s.ratings[key(result.League, team)] = next
	return next, nil
}

// ApplyResult updates both teams from the same pre-game ratings
func (s *Store) ApplyResult(result models.GameResult) (home, away models.TeamRating) {
	s.mu.Lock()
	defer s.mu.Unlock()

	params := s.Params(result.League)
	priorHome, homeKnown := s.getLocked(result.League, result.HomeTeam)
	priorAway, awayKnown := s.getLocked(result.League, result.AwayTeam)
	if !homeKnown || !awayKnown {
		s.log.Debug().
			Str("game_id", result.GameID).
			Bool("home_known", homeKnown).
			Bool("away_known", awayKnown).
			Msg("unrated team created at league default")
	}

	home = Update(priorHome, priorAway, result, params)
	away = Update(priorAway, priorHome, result, params)

	s.ratings[key(result.League, result.HomeTeam)] = home
	s.ratings[key(result.League, result.AwayTeam)] = away

	s.log.Debug().
		Str("game_id", result.GameID).
		Str("home", home.Team).
		Float64("home_rating", home.Overall).
		Str("away", away.Team).
		Float64("away_rating", away.Overall).
		Msg("ratings updated")

	return home, away
}

// HasResult reports whether both teams' ratings already reflect a result
// played at or after result.PlayedAt
func (s *Store) HasResult(result models.GameResult) bool {
	if result.PlayedAt.IsZero() {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	home, homeKnown := s.ratings[key(result.League, result.HomeTeam)]
	away, awayKnown := s.ratings[key(result.League, result.AwayTeam)]
	return homeKnown && awayKnown &&
		!home.LastUpdated.Before(result.PlayedAt) &&
		!away.LastUpdated.Before(result.PlayedAt)
}

// ApplyResults applies results in the order given
func (s *Store) ApplyResults(results []models.GameResult) []models.TeamRating {
	updated := make([]models.TeamRating, 0, len(results)*2)
	for _, result := range results {
		home, away := s.ApplyResult(result)
		updated = append(updated, home, away)
	}
	return updated
}

func key(league, team string) string {
	return league + ":" + team
}
