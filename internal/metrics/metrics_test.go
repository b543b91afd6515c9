package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEdge(t *testing.T) {
	m := metrics.New()

	m.RecordEdge("americanfootball_nfl", "SPREAD", "LEAN", 1.5, 0.8)
	m.RecordEdge("americanfootball_nfl", "SPREAD", "LEAN", 1.2, 0.7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EdgesDetected.WithLabelValues("americanfootball_nfl", "SPREAD", "LEAN")))
}

func TestRecordRecommendation(t *testing.T) {
	m := metrics.New()

	m.RecordRecommendation("LEAN", false, "", decimal.NewFromInt(150))
	m.RecordRecommendation("MAX_BET", true, "BANKROLL_WEEKLY_CAP", decimal.Zero)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recommendations.WithLabelValues("LEAN", "sized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recommendations.WithLabelValues("MAX_BET", "BANKROLL_WEEKLY_CAP")))
}

func TestUpdateBankroll(t *testing.T) {
	m := metrics.New()

	m.UpdateBankroll(decimal.NewFromInt(9500), decimal.NewFromInt(10000), decimal.NewFromInt(300))

	assert.Equal(t, 9500.0, testutil.ToFloat64(m.Bankroll.WithLabelValues("current")))
	assert.Equal(t, 300.0, testutil.ToFloat64(m.Bankroll.WithLabelValues("week_exposure")))
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.RecordCLV("SPREAD", 0.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "handicapper_closing_lines_captured_total 1"))
}
