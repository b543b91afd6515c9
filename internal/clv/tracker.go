package clv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/settlement"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/oddsmath"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound      = errors.New("clv record not found")
	ErrAlreadyClosed = errors.New("closing line already captured")
	ErrAlreadyGraded = errors.New("already graded")
	ErrNoStake       = errors.New("recommendation has no stake")
	ErrAlreadyPlaced = errors.New("recommendation already placed")
)

// Tracker is the append-only CLV ledger. Each record is written at placement,
// updated once with the closing line and once with the final result.
// A recommendation can be placed once.
type Tracker struct {
	records map[string]*models.CLVRecord
	order   []string
	placed  map[string]string // recommendation id -> record id
	cutoff  time.Duration
	ledger  contracts.Ledger
	log     zerolog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// NewTracker creates a tracker capturing closing lines cutoff before kickoff.
// ledger may be nil.
func NewTracker(cutoff time.Duration, ledger contracts.Ledger, log zerolog.Logger) *Tracker {
	return &Tracker{
		records: make(map[string]*models.CLVRecord),
		placed:  make(map[string]string),
		cutoff:  cutoff,
		ledger:  ledger,
		log:     log.With().Str("component", "clv").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Place records the line a recommendation was bet at
func (t *Tracker) Place(ctx context.Context, rec models.BetRecommendation) (models.CLVRecord, error) {
	if rec.Blocked || !rec.StakeAmount.IsPositive() {
		return models.CLVRecord{}, fmt.Errorf("place %s: %w", rec.ID, ErrNoStake)
	}

	edge := rec.Edge
	record := &models.CLVRecord{
		ID:               uuid.NewString(),
		RecommendationID: rec.ID,
		GameID:           edge.GameID,
		League:           edge.League,
		MarketType:       edge.MarketType,
		Side:             rec.Side,
		HomeTeam:         edge.HomeTeam,
		AwayTeam:         edge.AwayTeam,
		Kickoff:          edge.Kickoff,
		OpeningLine:      edge.BetLine,
		OpeningPrice:     edge.Price,
		ModelLine:        models.Float(edge.ModelLine),
		Stake:            rec.StakeAmount,
		PlacedAt:         t.now(),
	}

	t.mu.Lock()
	if existing, ok := t.placed[rec.ID]; ok && rec.ID != "" {
		t.mu.Unlock()
		return models.CLVRecord{}, fmt.Errorf("place %s as %s: %w", rec.ID, existing, ErrAlreadyPlaced)
	}
	t.records[record.ID] = record
	t.order = append(t.order, record.ID)
	if rec.ID != "" {
		t.placed[rec.ID] = record.ID
	}
	placed := *record
	t.mu.Unlock()

	t.persist(ctx, placed)

	t.log.Info().
		Str("id", placed.ID).
		Str("game_id", placed.GameID).
		Str("market", string(placed.MarketType)).
		Str("side", string(placed.Side)).
		Float64("line", placed.OpeningLine).
		Int("price", placed.OpeningPrice).
		Msg("bet placed")

	return placed, nil
}

// CaptureClosing stores the closing snapshot for a record and computes CLV
func (t *Tracker) CaptureClosing(ctx context.Context, id string, line models.MarketLine) (models.CLVRecord, error) {
	t.mu.Lock()
	record, ok := t.records[id]
	if !ok {
		t.mu.Unlock()
		return models.CLVRecord{}, fmt.Errorf("clv record %s: %w", id, ErrNotFound)
	}
	if record.IsClosed() {
		t.mu.Unlock()
		return models.CLVRecord{}, fmt.Errorf("clv record %s: %w", id, ErrAlreadyClosed)
	}

	clv, err := Value(*record, line)
	if err != nil {
		t.mu.Unlock()
		return models.CLVRecord{}, err
	}

	closedAt := t.now()
	record.ClosingLine = models.Float(line.SideLine(record.MarketType, record.Side))
	price := line.SidePrice(record.MarketType, record.Side)
	record.ClosingPrice = &price
	record.ClosingHome = models.Float(line.HomeMargin())
	record.CLV = &clv
	record.ClosedAt = &closedAt
	closed := *record
	t.mu.Unlock()

	t.persist(ctx, closed)
	t.log.Info().Str("id", id).Float64("clv", clv).Msg("closing line captured")
	return closed, nil
}

// CaptureDue captures closing lines for every open record whose kickoff is
// within the cutoff of now and returns the records it closed. Records with
// no known line are left open.
func (t *Tracker) CaptureDue(ctx context.Context, now time.Time, source contracts.LineSource) ([]models.CLVRecord, error) {
	due := t.due(now)

	var captured []models.CLVRecord
	var errs []error
	for _, record := range due {
		line, ok, err := source.LatestLine(ctx, record.GameID)
		if err != nil {
			errs = append(errs, fmt.Errorf("game %s: %w", record.GameID, err))
			continue
		}
		if !ok {
			t.log.Warn().Str("game_id", record.GameID).Msg("no line available at closing cutoff")
			continue
		}
		closed, err := t.CaptureClosing(ctx, record.ID, line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		captured = append(captured, closed)
	}

	return captured, errors.Join(errs...)
}

func (t *Tracker) due(now time.Time) []models.CLVRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []models.CLVRecord
	for _, id := range t.order {
		r := t.records[id]
		if r.IsClosed() || r.IsGraded() || r.Kickoff.IsZero() {
			continue
		}
		if !now.Before(r.Kickoff.Add(-t.cutoff)) {
			out = append(out, *r)
		}
	}
	return out
}

// RecordResult grades a record against the final score
func (t *Tracker) RecordResult(ctx context.Context, id string, homeScore, awayScore int) (models.CLVRecord, error) {
	t.mu.Lock()
	record, ok := t.records[id]
	if !ok {
		t.mu.Unlock()
		return models.CLVRecord{}, fmt.Errorf("clv record %s: %w", id, ErrNotFound)
	}
	if record.IsGraded() {
		t.mu.Unlock()
		return models.CLVRecord{}, fmt.Errorf("clv record %s: %w", id, ErrAlreadyGraded)
	}

	outcome, profitLoss, err := settlement.Settle(settlement.Wager{
		MarketType: record.MarketType,
		Side:       record.Side,
		Line:       record.OpeningLine,
		Price:      record.OpeningPrice,
		Stake:      record.Stake,
	}, homeScore, awayScore)
	if err != nil {
		t.mu.Unlock()
		return models.CLVRecord{}, fmt.Errorf("grade %s: %w", id, err)
	}

	gradedAt := t.now()
	record.Result = &outcome
	record.ProfitLoss = &profitLoss
	record.GradedAt = &gradedAt
	graded := *record
	t.mu.Unlock()

	t.persist(ctx, graded)
	t.log.Info().
		Str("id", id).
		Str("result", string(outcome)).
		Str("profit_loss", profitLoss.StringFixed(2)).
		Msg("bet graded")
	return graded, nil
}

// SettleGame grades every open record for a finished game
func (t *Tracker) SettleGame(ctx context.Context, result models.GameResult) ([]models.CLVRecord, error) {
	t.mu.Lock()
	var ids []string
	for _, id := range t.order {
		r := t.records[id]
		if r.GameID == result.GameID && !r.IsGraded() {
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()

	graded := make([]models.CLVRecord, 0, len(ids))
	var errs []error
	for _, id := range ids {
		record, err := t.RecordResult(ctx, id, result.HomeScore, result.AwayScore)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		graded = append(graded, record)
	}
	return graded, errors.Join(errs...)
}

// Placed reports whether a recommendation already has a record
func (t *Tracker) Placed(recommendationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.placed[recommendationID]
	return ok
}

// Get returns a copy of a record
func (t *Tracker) Get(id string) (models.CLVRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[id]
	if !ok {
		return models.CLVRecord{}, false
	}
	return *r, true
}

// Records returns copies of all records in placement order
func (t *Tracker) Records() []models.CLVRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.CLVRecord, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.records[id])
	}
	return out
}

// Load restores records, e.g. from the ledger after a restart
func (t *Tracker) Load(records []models.CLVRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range records {
		r := records[i]
		if _, exists := t.records[r.ID]; !exists {
			t.order = append(t.order, r.ID)
		}
		t.records[r.ID] = &r
		if r.RecommendationID != "" {
			t.placed[r.RecommendationID] = r.ID
		}
	}
}

func (t *Tracker) persist(ctx context.Context, record models.CLVRecord) {
	if t.ledger == nil {
		return
	}
	if err := t.ledger.WriteCLVRecord(ctx, record); err != nil {
		t.log.Error().Err(err).Str("id", record.ID).Msg("failed to persist clv record")
	}
}

// Value computes closing line value for a record against a closing snapshot.
// Spread: closing minus opening spread on the bet side. Total: movement of
// the total toward the bet (up for OVER, down for UNDER). Moneyline: change
// in implied probability, in cents.
func Value(record models.CLVRecord, closing models.MarketLine) (float64, error) {
	switch record.MarketType {
	case models.MarketSpread:
		return closing.SideLine(models.MarketSpread, record.Side) - record.OpeningLine, nil

	case models.MarketTotal:
		move := closing.Total - record.OpeningLine
		if record.Side == models.SideUnder {
			move = -move
		}
		return move, nil

	case models.MarketMoneyline:
		return oddsmath.CLVCents(record.OpeningPrice, closing.SidePrice(models.MarketMoneyline, record.Side))
	}
	return 0, fmt.Errorf("unknown market type %q", record.MarketType)
}
