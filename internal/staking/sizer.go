package staking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/config"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrStakeLimit rejects an externally sized stake that breaks a bankroll limit
var ErrStakeLimit = errors.New("stake exceeds bankroll limits")

const persistTimeout = 5 * time.Second

// Candidate is a classified edge waiting to be sized
type Candidate struct {
	Edge models.Edge
	Tier models.Tier
}

// Sizer converts classified edges into stakes using capped fractional Kelly.
// The weekly exposure total is read-modify-write, so every sizing call
// holds the mutex for its full duration. With a store attached, every
// change is written through as a snapshot, newest version last.
type Sizer struct {
	cfg      config.StakingConfig
	bankroll models.Bankroll
	version  uint64
	store    contracts.BankrollStore
	log      zerolog.Logger
	now      func() time.Time
	mu       sync.Mutex

	persistMu sync.Mutex
	persisted uint64
}

// NewSizer creates a sizer starting a week at the configured bankroll
func NewSizer(cfg config.StakingConfig, log zerolog.Logger) *Sizer {
	start := decimal.NewFromFloat(cfg.StartingBankroll).Round(2)
	s := &Sizer{
		cfg: cfg,
		log: log.With().Str("component", "sizer").Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
	s.bankroll = models.Bankroll{
		Current:       start,
		WeekStart:     start,
		WeekExposure:  decimal.Zero,
		WeekStartedAt: s.now(),
	}
	return s
}

// WithStore attaches a bankroll store
func (s *Sizer) WithStore(store contracts.BankrollStore) *Sizer {
	s.store = store
	return s
}

// KellyFraction is min(edge/scale, cap) * confidence * multiplier
func (s *Sizer) KellyFraction(edgePoints, confidence float64) float64 {
	if edgePoints <= 0 || confidence <= 0 {
		return 0
	}
	base := edgePoints / s.cfg.EdgeScale
	if base > s.cfg.KellyCap {
		base = s.cfg.KellyCap
	}
	return base * confidence * s.cfg.KellyMultiplier
}

// Size sizes a single classified edge against the current bankroll
func (s *Sizer) Size(edge models.Edge, tier models.Tier) models.BetRecommendation {
	s.mu.Lock()
	rec := s.sizeLocked(edge, tier)
	snapshot, version := s.bankroll, s.version
	s.mu.Unlock()

	s.persist(snapshot, version)
	return rec
}

// SizeBatch sizes candidates sequentially, strongest tier and largest edge
// first, so the weekly cap is spent on the best plays
func (s *Sizer) SizeBatch(candidates []Candidate) []models.BetRecommendation {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Tier.Rank() != ordered[j].Tier.Rank() {
			return ordered[i].Tier.Rank() > ordered[j].Tier.Rank()
		}
		return ordered[i].Edge.EdgePoints > ordered[j].Edge.EdgePoints
	})

	s.mu.Lock()
	recs := make([]models.BetRecommendation, 0, len(ordered))
	for _, c := range ordered {
		recs = append(recs, s.sizeLocked(c.Edge, c.Tier))
	}
	snapshot, version := s.bankroll, s.version
	s.mu.Unlock()

	s.persist(snapshot, version)
	return recs
}

func (s *Sizer) sizeLocked(edge models.Edge, tier models.Tier) models.BetRecommendation {
	rec := models.BetRecommendation{
		ID:             uuid.NewString(),
		Edge:           edge,
		Tier:           tier,
		Side:           edge.Side,
		StakeAmount:    decimal.Zero,
		BankrollAtTime: s.bankroll.Current,
		CreatedAt:      s.now(),
	}

	if tier == models.TierNoPlay {
		return block(rec, models.ReasonNoPlay)
	}

	if s.bankroll.Drawdown() > s.cfg.StopLossPct {
		s.log.Warn().
			Float64("drawdown", s.bankroll.Drawdown()).
			Str("game_id", edge.GameID).
			Msg("stop-loss active, stake blocked")
		return block(rec, models.ReasonBankrollStopLoss)
	}

	rec.KellyFraction = s.KellyFraction(edge.EdgePoints, edge.Confidence)

	stake := s.bankroll.Current.Mul(decimal.NewFromFloat(rec.KellyFraction))
	maxBet := s.bankroll.Current.Mul(decimal.NewFromFloat(s.cfg.MaxBetPct))
	if stake.GreaterThan(maxBet) {
		stake = maxBet
	}

	room := s.weeklyRoomLocked()
	if !room.IsPositive() {
		s.log.Warn().
			Str("exposure", s.bankroll.WeekExposure.StringFixed(2)).
			Str("game_id", edge.GameID).
			Msg("weekly exposure cap reached, stake blocked")
		return block(rec, models.ReasonBankrollWeeklyCap)
	}
	if stake.GreaterThan(room) {
		stake = room
	}

	// Truncated to cents: a stake never exceeds a cap
	stake = stake.Truncate(2)
	if !stake.IsPositive() {
		return block(rec, models.ReasonNoPlay)
	}

	rec.StakeAmount = stake
	s.bankroll.WeekExposure = s.bankroll.WeekExposure.Add(stake)
	s.version++

	s.log.Info().
		Str("game_id", edge.GameID).
		Str("market", string(edge.MarketType)).
		Str("side", string(edge.Side)).
		Str("tier", string(tier)).
		Float64("edge", edge.EdgePoints).
		Float64("kelly", rec.KellyFraction).
		Str("stake", stake.StringFixed(2)).
		Msg("stake sized")

	return rec
}

func (s *Sizer) weeklyRoomLocked() decimal.Decimal {
	limit := s.bankroll.WeekStart.Mul(decimal.NewFromFloat(s.cfg.WeeklyExposurePct))
	return limit.Sub(s.bankroll.WeekExposure)
}

// StartWeek resets exposure and drawdown tracking at balance
func (s *Sizer) StartWeek(balance decimal.Decimal, at time.Time) error {
	if !balance.IsPositive() {
		return fmt.Errorf("week-start bankroll must be positive, got %s", balance)
	}

	balance = balance.Round(2)
	s.mu.Lock()
	s.bankroll = models.Bankroll{
		Current:       balance,
		WeekStart:     balance,
		WeekExposure:  decimal.Zero,
		WeekStartedAt: at,
	}
	s.version++
	snapshot, version := s.bankroll, s.version
	s.mu.Unlock()

	s.persist(snapshot, version)
	s.log.Info().Str("bankroll", balance.StringFixed(2)).Msg("new week started")
	return nil
}

// ApplyProfit moves the current balance by a settled wager's profit or loss
func (s *Sizer) ApplyProfit(profitLoss decimal.Decimal) models.Bankroll {
	s.mu.Lock()
	s.bankroll.Current = s.bankroll.Current.Add(profitLoss)
	s.version++
	snapshot, version := s.bankroll, s.version
	s.mu.Unlock()

	s.persist(snapshot, version)
	return snapshot
}

// Admit checks a stake sized elsewhere against the stop-loss, the per-bet
// cap and the weekly room, and counts it toward the week's exposure
func (s *Sizer) Admit(stake decimal.Decimal) error {
	if !stake.IsPositive() {
		return fmt.Errorf("stake %s: %w", stake, ErrStakeLimit)
	}

	s.mu.Lock()
	if s.bankroll.Drawdown() > s.cfg.StopLossPct {
		s.mu.Unlock()
		return fmt.Errorf("stop-loss active: %w", ErrStakeLimit)
	}
	maxBet := s.bankroll.Current.Mul(decimal.NewFromFloat(s.cfg.MaxBetPct))
	if stake.GreaterThan(maxBet) {
		s.mu.Unlock()
		return fmt.Errorf("stake %s above max bet %s: %w", stake.StringFixed(2), maxBet.StringFixed(2), ErrStakeLimit)
	}
	room := s.weeklyRoomLocked()
	if stake.GreaterThan(room) {
		s.mu.Unlock()
		return fmt.Errorf("stake %s above weekly room %s: %w", stake.StringFixed(2), room.StringFixed(2), ErrStakeLimit)
	}

	s.bankroll.WeekExposure = s.bankroll.WeekExposure.Add(stake)
	s.version++
	snapshot, version := s.bankroll, s.version
	s.mu.Unlock()

	s.persist(snapshot, version)
	return nil
}

// Release returns an admitted stake that was never placed
func (s *Sizer) Release(stake decimal.Decimal) {
	s.mu.Lock()
	s.bankroll.WeekExposure = decimal.Max(decimal.Zero, s.bankroll.WeekExposure.Sub(stake))
	s.version++
	snapshot, version := s.bankroll, s.version
	s.mu.Unlock()

	s.persist(snapshot, version)
}

// Restore replaces the bankroll state, e.g. from a persisted snapshot. It
// is not written back to the store.
func (s *Sizer) Restore(b models.Bankroll) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bankroll = b
	s.version++
	s.persistMu.Lock()
	s.persisted = s.version
	s.persistMu.Unlock()
}

// Bankroll returns the current bankroll state
func (s *Sizer) Bankroll() models.Bankroll {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bankroll
}

// persist writes a snapshot unless a newer one was already written
func (s *Sizer) persist(b models.Bankroll, version uint64) {
	if s.store == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if version <= s.persisted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.store.WriteBankroll(ctx, b); err != nil {
		s.log.Error().Err(err).Msg("failed to persist bankroll")
		return
	}
	s.persisted = version
}

func block(rec models.BetRecommendation, reason models.Reason) models.BetRecommendation {
	rec.Blocked = true
	rec.BlockReason = reason
	rec.StakeAmount = decimal.Zero
	return rec
}
