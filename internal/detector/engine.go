package detector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/adjustments"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/config"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/ratings"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/registry"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/sharp"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/staking"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/rs/zerolog"
)

// Markets are evaluated in this order for every game
var Markets = []models.MarketType{models.MarketSpread, models.MarketTotal, models.MarketMoneyline}

// MarketResult is one market's comparison and tier
type MarketResult struct {
	MarketType models.MarketType   `json:"market_type"`
	Comparison Comparison          `json:"comparison"`
	Sharp      *models.SharpSignal `json:"sharp,omitempty"`
	Tier       models.Tier         `json:"tier"`
}

// GameReport is everything detection produced for one game
type GameReport struct {
	GameID             string             `json:"game_id"`
	League             string             `json:"league"`
	HomeTeam           string             `json:"home_team"`
	AwayTeam           string             `json:"away_team"`
	Matchup            ratings.Matchup    `json:"matchup"`
	Adjustments        adjustments.Result `json:"adjustments"`
	ModelMargin        float64            `json:"model_margin"`
	HomeWinProbability float64            `json:"home_win_probability"`
	SpreadMovement     float64            `json:"spread_movement"`
	Markets            []MarketResult     `json:"markets,omitempty"`
	Reason             models.Reason      `json:"reason,omitempty"`
}

// Report is the output of one slate evaluation
type Report struct {
	Games           []GameReport               `json:"games"`
	Recommendations []models.BetRecommendation `json:"recommendations"`
	Bankroll        models.Bankroll            `json:"bankroll"`
	GeneratedAt     time.Time                  `json:"generated_at"`
}

// Edges returns every edge found in the report
func (r Report) Edges() []models.Edge {
	var edges []models.Edge
	for _, g := range r.Games {
		for _, m := range g.Markets {
			if m.Comparison.Edge != nil {
				edges = append(edges, *m.Comparison.Edge)
			}
		}
	}
	return edges
}

// Engine orchestrates a slate: detection fans out one worker per game, then
// classification and sizing run sequentially. Rating updates take the write
// side of the phase lock so they never overlap a detection pass.
type Engine struct {
	cfg        *config.Config
	leagues    *registry.LeagueRegistry
	ratings    *ratings.Store
	adjust     *adjustments.Engine
	sharp      *sharp.Detector
	comparator *Comparator
	classifier *Classifier
	sizer      *staking.Sizer

	publisher contracts.Publisher
	ledger    contracts.Ledger
	metrics   *metrics.Metrics

	phase sync.RWMutex
	log   zerolog.Logger
}

// NewEngine creates a detection engine
func NewEngine(
	cfg *config.Config,
	leagues *registry.LeagueRegistry,
	store *ratings.Store,
	sizer *staking.Sizer,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		leagues:    leagues,
		ratings:    store,
		adjust:     adjustments.NewEngine(log),
		sharp:      sharp.NewDetector(cfg),
		comparator: NewComparator(cfg.Market, cfg.Confidence, log),
		classifier: NewClassifier(cfg, cfg.Confidence.LowConfidence),
		sizer:      sizer,
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// WithPublisher sets where edges and recommendations are published
func (e *Engine) WithPublisher(p contracts.Publisher) *Engine {
	e.publisher = p
	return e
}

// WithLedger sets where recommendations and rating snapshots are persisted
func (e *Engine) WithLedger(l contracts.Ledger) *Engine {
	e.ledger = l
	return e
}

// WithMetrics enables Prometheus recording
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Evaluate runs detection, classification and sizing over a slate
func (e *Engine) Evaluate(ctx context.Context, slate []models.GameInput) (Report, error) {
	start := time.Now()

	games, err := e.detect(ctx, slate)
	if err != nil {
		return Report{}, err
	}

	var candidates []staking.Candidate
	for gi := range games {
		for mi := range games[gi].Markets {
			m := &games[gi].Markets[mi]
			edge := m.Comparison.Edge
			if edge == nil {
				m.Tier = models.TierNoPlay
				e.recordSkip(games[gi].League, m.MarketType, m.Comparison.Reason)
				continue
			}

			m.Tier = e.classifier.Classify(*edge)
			if e.metrics != nil {
				e.metrics.RecordEdge(edge.League, string(edge.MarketType), string(m.Tier), edge.EdgePoints, edge.Confidence)
			}
			if e.publisher != nil {
				if err := e.publisher.PublishEdge(ctx, *edge); err != nil {
					e.log.Error().Err(err).Str("game_id", edge.GameID).Msg("failed to publish edge")
				}
			}
			if m.Tier != models.TierNoPlay {
				candidates = append(candidates, staking.Candidate{Edge: *edge, Tier: m.Tier})
			}
		}
	}

	recs := e.sizer.SizeBatch(candidates)
	for _, rec := range recs {
		e.emit(ctx, rec)
	}

	bankroll := e.sizer.Bankroll()
	if e.metrics != nil {
		e.metrics.UpdateBankroll(bankroll.Current, bankroll.WeekStart, bankroll.WeekExposure)
		e.metrics.EvaluateLatency.Observe(time.Since(start).Seconds())
	}

	e.log.Info().
		Int("games", len(games)).
		Int("candidates", len(candidates)).
		Int("recommendations", len(recs)).
		Dur("elapsed", time.Since(start)).
		Msg("slate evaluated")

	return Report{
		Games:           games,
		Recommendations: recs,
		Bankroll:        bankroll,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// detect evaluates every game concurrently against a consistent ratings view
func (e *Engine) detect(ctx context.Context, slate []models.GameInput) ([]GameReport, error) {
	e.phase.RLock()
	defer e.phase.RUnlock()

	workers := e.cfg.Service.Workers
	if workers <= 0 {
		workers = 1
	}

	games := make([]GameReport, len(slate))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := range slate {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, fmt.Errorf("evaluation cancelled: %w", err)
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			games[i] = e.evaluateGame(slate[i])
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation cancelled: %w", err)
	}
	return games, nil
}

// evaluateGame produces a comparison for each market of one game
func (e *Engine) evaluateGame(input models.GameInput) GameReport {
	game := input.Context
	report := GameReport{
		GameID:   game.GameID,
		League:   game.League,
		HomeTeam: game.Home.Team,
		AwayTeam: game.Away.Team,
	}

	if e.metrics != nil {
		e.metrics.GamesEvaluated.WithLabelValues(game.League).Inc()
	}

	profile, ok := e.leagues.Get(game.League)
	if !ok {
		e.log.Warn().Str("game_id", game.GameID).Str("league", game.League).Msg("no profile for league, game skipped")
		report.Reason = models.ReasonMissingData
		return report
	}

	history := models.NewLineHistory(input.Lines)
	line, ok := history.Current()
	if !ok {
		report.Reason = models.ReasonNoMarket
		return report
	}
	report.SpreadMovement = history.SpreadMovement()

	params := profile.GetParams()
	report.Matchup = e.ratings.Matchup(game.League, game.Home.Team, game.Away.Team, game.NeutralSite)
	report.Adjustments = e.adjust.Compute(profile, input)
	report.ModelMargin = report.Matchup.Differential + report.Adjustments.Net.SpreadPoints()
	if params.MarginStdDev > 0 {
		report.HomeWinProbability = WinProbability(report.ModelMargin, params.MarginStdDev)
	}

	for _, market := range Markets {
		result := MarketResult{MarketType: market}

		in := CompareInput{
			GameID:          game.GameID,
			League:          game.League,
			MarketType:      market,
			Kickoff:         game.Kickoff,
			RatingDiff:      report.Matchup.Differential,
			Home:            report.Matchup.Home,
			Away:            report.Matchup.Away,
			Params:          params,
			HomeAdjustments: report.Adjustments.Home,
			AwayAdjustments: report.Adjustments.Away,
			Net:             report.Adjustments.Net,
			Line:            line,
		}
		in.Reasons = append(in.Reasons, report.Matchup.Reasons...)
		in.Reasons = append(in.Reasons, report.Adjustments.Reasons...)

		if split, ok := input.SplitFor(market); ok {
			split.GameID = game.GameID
			signal := e.sharp.Detect(game.League, split)
			result.Sharp = &signal
			in.Sharp = &signal
			if signal.Reason != models.ReasonNone {
				in.Reasons = append(in.Reasons, signal.Reason)
			}
		}

		result.Comparison = e.comparator.Compare(in)
		report.Markets = append(report.Markets, result)
	}

	return report
}

func (e *Engine) emit(ctx context.Context, rec models.BetRecommendation) {
	if e.metrics != nil {
		e.metrics.RecordRecommendation(string(rec.Tier), rec.Blocked, string(rec.BlockReason), rec.StakeAmount)
	}
	if e.ledger != nil {
		if err := e.ledger.WriteRecommendation(ctx, rec); err != nil {
			e.log.Error().Err(err).Str("id", rec.ID).Msg("failed to write recommendation")
		}
	}
	if e.publisher != nil {
		if err := e.publisher.PublishRecommendation(ctx, rec); err != nil {
			e.log.Error().Err(err).Str("id", rec.ID).Msg("failed to publish recommendation")
		}
	}
}

func (e *Engine) recordSkip(league string, market models.MarketType, reason models.Reason) {
	if e.metrics == nil || reason == models.ReasonNone {
		return
	}
	e.metrics.RecordSkip(league, string(market), string(reason))
}

// UpdateRatings applies final scores in kickoff order. It waits for any
// in-flight detection pass and blocks new ones until it finishes.
func (e *Engine) UpdateRatings(ctx context.Context, results []models.GameResult) ([]models.TeamRating, error) {
	ordered := make([]models.GameResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PlayedAt.Before(ordered[j].PlayedAt)
	})

	e.phase.Lock()
	updated := e.ratings.ApplyResults(ordered)
	e.phase.Unlock()

	if e.metrics != nil {
		e.metrics.RatingUpdates.Add(float64(len(ordered)))
	}

	e.log.Info().Int("results", len(ordered)).Int("ratings", len(updated)).Msg("ratings updated")

	if e.ledger != nil {
		if err := e.ledger.WriteRatings(ctx, updated); err != nil {
			return updated, fmt.Errorf("failed to persist ratings: %w", err)
		}
	}
	return updated, nil
}

// HasResult reports whether a final score is already in the ratings
func (e *Engine) HasResult(result models.GameResult) bool {
	return e.ratings.HasResult(result)
}

// Ratings returns the ratings store
func (e *Engine) Ratings() *ratings.Store {
	return e.ratings
}

// Sizer returns the stake sizer
func (e *Engine) Sizer() *staking.Sizer {
	return e.sizer
}
