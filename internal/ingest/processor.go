package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	FinalsStreamPrefix = "games.final."
	LinesStreamPrefix  = "odds.lines."
)

// ErrMalformed marks a payload that can never be handled
var ErrMalformed = errors.New("malformed payload")

// RatingUpdater applies final scores to the ratings
type RatingUpdater interface {
	UpdateRatings(ctx context.Context, results []models.GameResult) ([]models.TeamRating, error)
	HasResult(result models.GameResult) bool
}

// Settler grades the open wagers of a finished game
type Settler interface {
	SettleGame(ctx context.Context, result models.GameResult) ([]models.CLVRecord, error)
}

// BankrollKeeper moves the bankroll by settled profit or loss
type BankrollKeeper interface {
	ApplyProfit(profitLoss decimal.Decimal) models.Bankroll
}

// LineStore keeps the newest snapshot per game
type LineStore interface {
	Put(ctx context.Context, line models.MarketLine) (bool, error)
}

// Processor turns upstream stream entries into rating updates, settlements
// and line-cache writes. A game's final moves the ratings once.
type Processor struct {
	ratings  RatingUpdater
	settler  Settler
	bankroll BankrollKeeper
	lines    LineStore
	metrics  *metrics.Metrics
	log      zerolog.Logger

	finals   map[string]struct{}
	finalsMu sync.Mutex
}

// NewProcessor creates a processor; m may be nil
func NewProcessor(ratings RatingUpdater, settler Settler, bankroll BankrollKeeper, lines LineStore, m *metrics.Metrics, log zerolog.Logger) *Processor {
	return &Processor{
		ratings:  ratings,
		settler:  settler,
		bankroll: bankroll,
		lines:    lines,
		metrics:  m,
		log:      log.With().Str("component", "ingest").Logger(),
		finals:   make(map[string]struct{}),
	}
}

// HandleFinal updates ratings with a final score, then settles the game's
// wagers and books their profit or loss. Settlement runs even when the
// rating update fails; a replayed final settles again but leaves the
// ratings alone.
func (p *Processor) HandleFinal(ctx context.Context, data []byte) error {
	var result models.GameResult
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("%w: game result: %v", ErrMalformed, err)
	}
	if result.GameID == "" || result.HomeTeam == "" || result.AwayTeam == "" {
		return fmt.Errorf("%w: game result missing game id or teams", ErrMalformed)
	}

	ratingsErr := p.applyFinal(ctx, result)

	graded, err := p.settler.SettleGame(ctx, result)
	total := decimal.Zero
	for _, record := range graded {
		if record.ProfitLoss != nil {
			total = total.Add(*record.ProfitLoss)
		}
	}
	if len(graded) > 0 {
		bankroll := p.bankroll.ApplyProfit(total)
		if p.metrics != nil {
			p.metrics.UpdateBankroll(bankroll.Current, bankroll.WeekStart, bankroll.WeekExposure)
		}
		p.log.Info().
			Str("game_id", result.GameID).
			Int("graded", len(graded)).
			Str("profit_loss", total.StringFixed(2)).
			Msg("game settled")
	}
	if err != nil {
		err = fmt.Errorf("settle %s: %w", result.GameID, err)
	}
	return errors.Join(ratingsErr, err)
}

// applyFinal moves the ratings for a game the first time its final is seen.
// An update that was applied but not persisted still counts as applied.
func (p *Processor) applyFinal(ctx context.Context, result models.GameResult) error {
	p.finalsMu.Lock()
	_, seen := p.finals[result.GameID]
	if seen || p.ratings.HasResult(result) {
		p.finals[result.GameID] = struct{}{}
		p.finalsMu.Unlock()
		p.log.Debug().Str("game_id", result.GameID).Msg("final already applied to ratings")
		return nil
	}
	p.finals[result.GameID] = struct{}{}
	p.finalsMu.Unlock()

	updated, err := p.ratings.UpdateRatings(ctx, []models.GameResult{result})
	if err == nil {
		return nil
	}
	if len(updated) > 0 {
		p.log.Error().Err(err).Str("game_id", result.GameID).Msg("ratings updated but not persisted")
		return nil
	}

	p.finalsMu.Lock()
	delete(p.finals, result.GameID)
	p.finalsMu.Unlock()
	return fmt.Errorf("update ratings for %s: %w", result.GameID, err)
}

// HandleLine caches a market snapshot
func (p *Processor) HandleLine(ctx context.Context, data []byte) error {
	var line models.MarketLine
	if err := json.Unmarshal(data, &line); err != nil {
		return fmt.Errorf("%w: market line: %v", ErrMalformed, err)
	}
	if line.GameID == "" {
		return fmt.Errorf("%w: market line has no game id", ErrMalformed)
	}

	stored, err := p.lines.Put(ctx, line)
	if err != nil {
		return err
	}
	if stored {
		p.log.Debug().Str("game_id", line.GameID).Str("book", line.Book).Msg("line cached")
	}
	return nil
}

// Handle dispatches a message by its stream prefix
func (p *Processor) Handle(ctx context.Context, msg consumer.Message) error {
	switch {
	case strings.HasPrefix(msg.StreamKey, FinalsStreamPrefix):
		return p.HandleFinal(ctx, msg.Data)
	case strings.HasPrefix(msg.StreamKey, LinesStreamPrefix):
		return p.HandleLine(ctx, msg.Data)
	}
	return fmt.Errorf("no handler for stream %s", msg.StreamKey)
}

// Streams returns the upstream streams consumed for the given leagues
func Streams(leagues []string) []string {
	streams := make([]string, 0, 2*len(leagues))
	for _, league := range leagues {
		streams = append(streams, FinalsStreamPrefix+league, LinesStreamPrefix+league)
	}
	return streams
}

// Source is a consumer-group stream reader
type Source interface {
	ConsumeStream(ctx context.Context, streamKey string) (<-chan consumer.Message, <-chan error)
	AckMessage(ctx context.Context, streamKey, messageID string) error
}

// Run consumes every stream until ctx is done. Messages are acked once
// handled, malformed ones are acked and dropped, and other failures stay
// pending for redelivery.
func (p *Processor) Run(ctx context.Context, source Source, streams []string) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var setupErrs []error

	for _, stream := range streams {
		messages, errs := source.ConsumeStream(ctx, stream)

		wg.Add(1)
		go func(stream string) {
			defer wg.Done()

			streamErr := func(err error) {
				p.log.Warn().Err(err).Str("stream", stream).Msg("stream error")
				if strings.Contains(err.Error(), "consumer group") {
					mu.Lock()
					setupErrs = append(setupErrs, err)
					mu.Unlock()
				}
			}

			for {
				select {
				case msg, ok := <-messages:
					if !ok {
						if errs != nil {
							for err := range errs {
								streamErr(err)
							}
						}
						return
					}
					if err := p.Handle(ctx, msg); err != nil {
						if !errors.Is(err, ErrMalformed) {
							p.log.Error().Err(err).Str("stream", stream).Str("id", msg.ID).Msg("failed to handle message")
							continue
						}
						p.log.Warn().Err(err).Str("stream", stream).Str("id", msg.ID).Msg("dropping malformed message")
					}
					if err := source.AckMessage(ctx, stream, msg.ID); err != nil {
						p.log.Warn().Err(err).Str("stream", stream).Str("id", msg.ID).Msg("failed to ack message")
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					streamErr(err)
				}
			}
		}(stream)
	}

	p.log.Info().Strs("streams", streams).Msg("consuming upstream streams")
	wg.Wait()
	return errors.Join(setupErrs...)
}
