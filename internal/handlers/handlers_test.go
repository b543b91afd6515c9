package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/cache"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/clv"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/config"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/detector"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/ratings"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/registry"
	"github.com/XavierBriggs/fortuna/services/handicapper/internal/staking"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/XavierBriggs/fortuna/services/handicapper/sports/americanfootball_nfl"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nfl = americanfootball_nfl.SportKey

var kickoff = time.Date(2026, 11, 8, 18, 0, 0, 0, time.UTC)

type fixture struct {
	router http.Handler
	lines  *cache.MemoryLines
	engine *detector.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	leagues, err := registry.NewLeagueRegistry(americanfootball_nfl.NewProfile())
	require.NoError(t, err)

	store := ratings.NewStore(leagues, zerolog.Nop())
	require.NoError(t, store.Seed([]models.TeamRating{
		{Team: "A", League: nfl, Overall: 5.0, GamesPlayed: 12},
		{Team: "B", League: nfl, Overall: 2.0, GamesPlayed: 12},
	}))

	m := metrics.New()
	engine := detector.NewEngine(cfg, leagues, store, staking.NewSizer(cfg.Staking, zerolog.Nop()), zerolog.Nop()).
		WithMetrics(m)
	tracker := clv.NewTracker(cfg.CLV.ClosingCutoff, nil, zerolog.Nop())
	lines := cache.NewMemoryLines()

	h := handlers.NewHandler(handlers.Deps{
		Config:  cfg,
		Engine:  engine,
		Tracker: tracker,
		Lines:   lines,
		Metrics: m,
		Leagues: leagues.Keys(),
	}, zerolog.Nop())

	return &fixture{
		router: handlers.NewRouter(context.Background(), h, handlers.RouterOptions{}),
		lines:  lines,
		engine: engine,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func slate() handlers.EvaluateRequest {
	return handlers.EvaluateRequest{Games: []models.GameInput{{
		Context: models.GameContext{
			GameID:      "g1",
			League:      nfl,
			Home:        models.TeamContext{Team: "A"},
			Away:        models.TeamContext{Team: "B"},
			Venue:       models.Venue{Name: "Dome", Indoor: true},
			Kickoff:     kickoff,
			NeutralSite: true,
		},
		Lines: []models.MarketLine{{
			Book:       "pinnacle",
			SpreadHome: -1.5,
			SpreadAway: 1.5,
			CapturedAt: kickoff.Add(-2 * time.Hour),
		}},
	}}}
}

// evaluate runs the slate and returns its single recommendation
func (f *fixture) evaluate(t *testing.T) models.BetRecommendation {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/evaluate", slate())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report struct {
		Recommendations []models.BetRecommendation `json:"recommendations"`
	}
	decodeBody(t, rec, &report)
	require.Len(t, report.Recommendations, 1)
	return report.Recommendations[0]
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "handicapper", body["service"])
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t)

	recommendation := f.evaluate(t)
	assert.Equal(t, models.TierLean, recommendation.Tier)
	assert.Equal(t, models.SideHome, recommendation.Side)
	assert.True(t, recommendation.StakeAmount.Equal(decimal.NewFromInt(150)))

	line, ok, err := f.lines.LatestLine(context.Background(), "g1")
	require.NoError(t, err)
	require.True(t, ok, "evaluated lines are stored for closing capture")
	assert.Equal(t, -1.5, line.SpreadHome)
}

func TestEvaluate_BadRequests(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/evaluate", handlers.EvaluateRequest{}).Code)

	missingTeam := slate()
	missingTeam.Games[0].Context.Away.Team = ""
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/evaluate", missingTeam).Code)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/evaluate", map[string]int{"slate": 1}).Code)
}

func TestCLVLifecycle(t *testing.T) {
	f := newFixture(t)
	recommendation := f.evaluate(t)

	rec := f.do(t, http.MethodPost, "/api/v1/clv/bets", handlers.PlaceBetRequest{RecommendationID: recommendation.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var placed models.CLVRecord
	decodeBody(t, rec, &placed)
	assert.Equal(t, recommendation.ID, placed.RecommendationID)
	assert.Equal(t, -1.5, placed.OpeningLine)

	closing := models.MarketLine{GameID: "g1", SpreadHome: -1.0, SpreadAway: 1.0}
	rec = f.do(t, http.MethodPost, "/api/v1/clv/bets/"+placed.ID+"/closing", closing)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var closed models.CLVRecord
	decodeBody(t, rec, &closed)
	require.NotNil(t, closed.CLV)
	assert.InDelta(t, 0.5, *closed.CLV, 1e-9, "market moved toward the bet")

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/clv/bets/"+placed.ID+"/closing", closing).Code)

	rec = f.do(t, http.MethodPost, "/api/v1/clv/bets/"+placed.ID+"/result", map[string]int{"home_score": 24, "away_score": 20})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var graded models.CLVRecord
	decodeBody(t, rec, &graded)
	require.NotNil(t, graded.Result)
	assert.Equal(t, models.OutcomeWin, *graded.Result)
	assert.True(t, f.engine.Sizer().Bankroll().Current.GreaterThan(decimal.NewFromInt(10000)))

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/clv/bets/"+placed.ID+"/result", map[string]int{"home_score": 24, "away_score": 20}).Code)

	rec = f.do(t, http.MethodGet, "/api/v1/clv/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary models.CLVSummary
	decodeBody(t, rec, &summary)
	assert.Equal(t, 1, summary.Records)
	assert.Equal(t, 1, summary.Wins)
	assert.InDelta(t, 0.5, summary.RollingCLV, 1e-9)
}

func TestPlaceBet_OncePerRecommendation(t *testing.T) {
	f := newFixture(t)
	recommendation := f.evaluate(t)
	req := handlers.PlaceBetRequest{RecommendationID: recommendation.ID}

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/clv/bets", req).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/clv/bets", req).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/clv/bets", handlers.PlaceBetRequest{Recommendation: &recommendation}).Code)
}

func TestPlaceBet_SuppliedStakeMustFitLimits(t *testing.T) {
	f := newFixture(t)
	sizer := f.engine.Sizer()

	supplied := models.BetRecommendation{
		ID:   "manual-1",
		Side: models.SideHome,
		Edge: models.Edge{
			GameID:     "g9",
			League:     nfl,
			MarketType: models.MarketSpread,
			Side:       models.SideHome,
			BetLine:    -3,
			Price:      -110,
		},
		StakeAmount: decimal.NewFromInt(5000),
	}
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, http.MethodPost, "/api/v1/clv/bets", handlers.PlaceBetRequest{Recommendation: &supplied}).Code)
	assert.True(t, sizer.Bankroll().WeekExposure.IsZero())

	supplied.StakeAmount = decimal.NewFromInt(250)
	rec := f.do(t, http.MethodPost, "/api/v1/clv/bets", handlers.PlaceBetRequest{Recommendation: &supplied})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "250.00", sizer.Bankroll().WeekExposure.StringFixed(2))

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/clv/bets", handlers.PlaceBetRequest{Recommendation: &supplied}).Code)
	assert.Equal(t, "250.00", sizer.Bankroll().WeekExposure.StringFixed(2))
}

func TestCLV_Errors(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/clv/bets", handlers.PlaceBetRequest{RecommendationID: "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/clv/bets", handlers.PlaceBetRequest{}).Code)

	blocked := models.BetRecommendation{ID: "r1", Blocked: true, BlockReason: models.ReasonBankrollWeeklyCap}
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, http.MethodPost, "/api/v1/clv/bets", handlers.PlaceBetRequest{Recommendation: &blocked}).Code)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/clv/bets/missing/closing", models.MarketLine{SpreadHome: -3}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/clv/bets/missing/result", map[string]int{"home_score": 3}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/clv/summary?window=abc", nil).Code)
}

func TestRatings(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/ratings?league="+nfl, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []models.TeamRating
	decodeBody(t, rec, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Team)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/ratings?league=baseball_mlb", nil).Code)

	results := handlers.ResultsRequest{Results: []models.GameResult{{
		GameID:    "g0", League: nfl, HomeTeam: "A", AwayTeam: "B",
		HomeScore: 30, AwayScore: 10, PlayedAt: kickoff.Add(-7 * 24 * time.Hour),
	}}}
	rec = f.do(t, http.MethodPost, "/api/v1/ratings/results", results)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	a, ok := f.engine.Ratings().Get(nfl, "A")
	require.True(t, ok)
	assert.Equal(t, 13, a.GamesPlayed)

	results.Results[0].League = "baseball_mlb"
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/ratings/results", results).Code)
}

func TestBias(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/ratings/bias", handlers.BiasRequest{League: nfl, Points: 1.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.5, f.engine.Ratings().Bias(nfl))

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/ratings/bias", handlers.BiasRequest{League: "x", Points: 1}).Code)
}

func TestBankroll(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/bankroll", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var b handlers.BankrollResponse
	decodeBody(t, rec, &b)
	assert.True(t, b.Current.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 0.0, b.Drawdown)

	rec = f.do(t, http.MethodPost, "/api/v1/bankroll/week", map[string]string{"balance": "9000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, f.engine.Sizer().Bankroll().WeekStart.Equal(decimal.NewFromInt(9000)))

	rec = f.do(t, http.MethodPost, "/api/v1/bankroll/week", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/bankroll/week", map[string]string{"balance": "-5"}).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.evaluate(t)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "handicapper_")
}

func TestFeedStats_Disabled(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/feed/stats", nil).Code)
}

func TestRateLimit(t *testing.T) {
	limited := handlers.RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	limited.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	limited.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}
