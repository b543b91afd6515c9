package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/cache"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/clv"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/config"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/ingest"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/staking"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ratingsRecorder fails with err before applying anything, or with
// persistErr after applying
type ratingsRecorder struct {
	mu         sync.Mutex
	results    []models.GameResult
	err        error
	persistErr error
}

func (r *ratingsRecorder) UpdateRatings(_ context.Context, results []models.GameResult) ([]models.TeamRating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	r.results = append(r.results, results...)
	updated := make([]models.TeamRating, 0, 2*len(results))
	for _, result := range results {
		updated = append(updated,
			models.TeamRating{Team: result.HomeTeam, League: result.League},
			models.TeamRating{Team: result.AwayTeam, League: result.League})
	}
	return updated, r.persistErr
}

func (r *ratingsRecorder) HasResult(result models.GameResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, applied := range r.results {
		if applied.GameID == result.GameID {
			return true
		}
	}
	return false
}

type fakeSource struct {
	streams map[string]chan consumer.Message
	mu      sync.Mutex
	acked   []string
}

func (f *fakeSource) ConsumeStream(_ context.Context, streamKey string) (<-chan consumer.Message, <-chan error) {
	errs := make(chan error)
	close(errs)
	return f.streams[streamKey], errs
}

func (f *fakeSource) AckMessage(_ context.Context, _ string, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, messageID)
	return nil
}

func final(t *testing.T, home, away int) []byte {
	t.Helper()
	data, err := json.Marshal(models.GameResult{
		GameID:    "g1",
		League:    "americanfootball_nfl",
		HomeTeam:  "KC",
		AwayTeam:  "BUF",
		HomeScore: home,
		AwayScore: away,
		PlayedAt:  time.Date(2026, 9, 13, 20, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return data
}

func newProcessor(t *testing.T, updater ingest.RatingUpdater) (*ingest.Processor, *clv.Tracker, *staking.Sizer, *cache.MemoryLines) {
	t.Helper()
	tracker := clv.NewTracker(5*time.Minute, nil, zerolog.Nop())
	sizer := staking.NewSizer(config.Default().Staking, zerolog.Nop())
	lines := cache.NewMemoryLines()
	return ingest.NewProcessor(updater, tracker, sizer, lines, nil, zerolog.Nop()), tracker, sizer, lines
}

func TestHandleFinal_UpdatesRatingsAndSettles(t *testing.T) {
	ctx := context.Background()
	updater := &ratingsRecorder{}
	p, tracker, sizer, _ := newProcessor(t, updater)

	_, err := tracker.Place(ctx, models.BetRecommendation{
		ID:   "rec-1",
		Side: models.SideHome,
		Edge: models.Edge{
			GameID:     "g1",
			League:     "americanfootball_nfl",
			MarketType: models.MarketSpread,
			Side:       models.SideHome,
			BetLine:    -3,
			Price:      -110,
		},
		StakeAmount: decimal.NewFromInt(110),
	})
	require.NoError(t, err)

	require.NoError(t, p.HandleFinal(ctx, final(t, 27, 20)))

	require.Len(t, updater.results, 1)
	assert.Equal(t, "KC", updater.results[0].HomeTeam)

	records := tracker.Records()
	require.Len(t, records, 1)
	require.True(t, records[0].IsGraded())
	assert.Equal(t, models.OutcomeWin, *records[0].Result)
	assert.True(t, sizer.Bankroll().Current.Equal(decimal.NewFromInt(10100)))
}

func TestHandleFinal_NoWagers(t *testing.T) {
	p, _, sizer, _ := newProcessor(t, &ratingsRecorder{})

	require.NoError(t, p.HandleFinal(context.Background(), final(t, 10, 13)))
	assert.True(t, sizer.Bankroll().Current.Equal(decimal.NewFromInt(10000)))
}

func placeHomeSpread(t *testing.T, tracker *clv.Tracker) {
	t.Helper()
	_, err := tracker.Place(context.Background(), models.BetRecommendation{
		ID:   "rec-1",
		Side: models.SideHome,
		Edge: models.Edge{
			GameID:     "g1",
			League:     "americanfootball_nfl",
			MarketType: models.MarketSpread,
			Side:       models.SideHome,
			BetLine:    -3,
			Price:      -110,
		},
		StakeAmount: decimal.NewFromInt(110),
	})
	require.NoError(t, err)
}

func TestHandleFinal_Malformed(t *testing.T) {
	p, _, _, _ := newProcessor(t, &ratingsRecorder{})
	assert.ErrorIs(t, p.HandleFinal(context.Background(), []byte("{")), ingest.ErrMalformed)
	assert.ErrorIs(t, p.HandleFinal(context.Background(), []byte(`{"game_id":"g1"}`)), ingest.ErrMalformed)
}

func TestHandleFinal_SettlesWhenRatingsNotPersisted(t *testing.T) {
	updater := &ratingsRecorder{persistErr: errors.New("holocron unavailable")}
	p, tracker, sizer, _ := newProcessor(t, updater)
	placeHomeSpread(t, tracker)

	require.NoError(t, p.HandleFinal(context.Background(), final(t, 27, 20)))

	records := tracker.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].IsGraded())
	assert.Equal(t, "10100.00", sizer.Bankroll().Current.StringFixed(2))
	assert.Len(t, updater.results, 1)
}

func TestHandleFinal_SettlesWhenRatingsFail(t *testing.T) {
	updater := &ratingsRecorder{err: errors.New("locked")}
	p, tracker, sizer, _ := newProcessor(t, updater)
	placeHomeSpread(t, tracker)

	err := p.HandleFinal(context.Background(), final(t, 27, 20))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ingest.ErrMalformed)
	assert.True(t, tracker.Records()[0].IsGraded())
	assert.Equal(t, "10100.00", sizer.Bankroll().Current.StringFixed(2))

	updater.err = nil
	require.NoError(t, p.HandleFinal(context.Background(), final(t, 27, 20)), "retry applies the ratings")
	assert.Len(t, updater.results, 1)
	assert.Equal(t, "10100.00", sizer.Bankroll().Current.StringFixed(2), "nothing left to settle")
}

func TestHandleFinal_ReplayAppliesRatingsOnce(t *testing.T) {
	updater := &ratingsRecorder{}
	p, tracker, sizer, _ := newProcessor(t, updater)
	placeHomeSpread(t, tracker)

	require.NoError(t, p.HandleFinal(context.Background(), final(t, 27, 20)))
	require.NoError(t, p.HandleFinal(context.Background(), final(t, 27, 20)))

	assert.Len(t, updater.results, 1)
	assert.Equal(t, "10100.00", sizer.Bankroll().Current.StringFixed(2))

	restarted, _, _, _ := newProcessor(t, updater)
	require.NoError(t, restarted.HandleFinal(context.Background(), final(t, 27, 20)))
	assert.Len(t, updater.results, 1, "ratings already reflect the final")
}

func TestHandleLine_CachesNewest(t *testing.T) {
	ctx := context.Background()
	p, _, _, lines := newProcessor(t, &ratingsRecorder{})

	data, err := json.Marshal(models.MarketLine{GameID: "g1", SpreadHome: -3, CapturedAt: time.Now().UTC()})
	require.NoError(t, err)
	require.NoError(t, p.HandleLine(ctx, data))

	line, ok, err := lines.LatestLine(ctx, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -3.0, line.SpreadHome)

	assert.ErrorIs(t, p.HandleLine(ctx, []byte(`{"spread_home":-3}`)), ingest.ErrMalformed, "line without a game id")
	assert.ErrorIs(t, p.HandleLine(ctx, []byte("{not json")), ingest.ErrMalformed)
}

func TestHandle_UnknownStream(t *testing.T) {
	p, _, _, _ := newProcessor(t, &ratingsRecorder{})
	assert.Error(t, p.Handle(context.Background(), consumer.Message{StreamKey: "odds.raw.nfl"}))
}

func TestStreams(t *testing.T) {
	assert.Equal(t, []string{
		"games.final.americanfootball_nfl",
		"odds.lines.americanfootball_nfl",
	}, ingest.Streams([]string{"americanfootball_nfl"}))
}

func TestRun_AcksHandledMessages(t *testing.T) {
	updater := &ratingsRecorder{}
	p, _, _, lines := newProcessor(t, updater)

	lineData, err := json.Marshal(models.MarketLine{GameID: "g1", SpreadHome: -3})
	require.NoError(t, err)

	finals := make(chan consumer.Message, 2)
	odds := make(chan consumer.Message, 1)
	finals <- consumer.Message{ID: "1-0", StreamKey: "games.final.americanfootball_nfl", Data: final(t, 21, 17)}
	finals <- consumer.Message{ID: "2-0", StreamKey: "games.final.americanfootball_nfl", Data: []byte("{")}
	odds <- consumer.Message{ID: "3-0", StreamKey: "odds.lines.americanfootball_nfl", Data: lineData}
	close(finals)
	close(odds)

	source := &fakeSource{streams: map[string]chan consumer.Message{
		"games.final.americanfootball_nfl": finals,
		"odds.lines.americanfootball_nfl":  odds,
	}}

	require.NoError(t, p.Run(context.Background(), source, ingest.Streams([]string{"americanfootball_nfl"})))

	assert.ElementsMatch(t, []string{"1-0", "2-0", "3-0"}, source.acked, "the unparseable final is dropped")
	assert.Len(t, updater.results, 1)
	_, ok, _ := lines.LatestLine(context.Background(), "g1")
	assert.True(t, ok)
}

func TestRun_FailedMessagesStayPending(t *testing.T) {
	p, _, _, _ := newProcessor(t, &ratingsRecorder{err: errors.New("locked")})

	finals := make(chan consumer.Message, 2)
	finals <- consumer.Message{ID: "1-0", StreamKey: "games.final.americanfootball_nfl", Data: final(t, 21, 17)}
	finals <- consumer.Message{ID: "2-0", StreamKey: "games.final.americanfootball_nfl", Data: []byte("{not json")}
	close(finals)

	source := &fakeSource{streams: map[string]chan consumer.Message{
		"games.final.americanfootball_nfl": finals,
	}}

	require.NoError(t, p.Run(context.Background(), source, []string{"games.final.americanfootball_nfl"}))
	assert.Equal(t, []string{"2-0"}, source.acked)
}
