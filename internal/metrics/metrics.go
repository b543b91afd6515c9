// Package metrics exposes Prometheus metrics for the handicapper.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics collects detection, sizing and CLV metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// Detection
	GamesEvaluated  *prometheus.CounterVec
	EdgesDetected   *prometheus.CounterVec
	MarketsSkipped  *prometheus.CounterVec
	EdgePoints      *prometheus.HistogramVec
	EdgeConfidence  *prometheus.HistogramVec
	EvaluateLatency prometheus.Histogram

	// Sizing
	Recommendations *prometheus.CounterVec
	StakeAmount     *prometheus.HistogramVec
	Bankroll        *prometheus.GaugeVec

	// CLV
	ClosingCaptured prometheus.Counter
	CLVPoints       *prometheus.HistogramVec
	RollingCLV      prometheus.Gauge

	// Ratings
	RatingUpdates prometheus.Counter
}

// New creates the collectors and registers them
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		GamesEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handicapper_games_evaluated_total",
				Help: "Games run through detection",
			},
			[]string{"league"},
		),
		EdgesDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handicapper_edges_total",
				Help: "Edges detected by market and tier",
			},
			[]string{"league", "market", "tier"},
		),
		MarketsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handicapper_markets_skipped_total",
				Help: "Markets skipped by reason",
			},
			[]string{"league", "market", "reason"},
		),
		EdgePoints: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handicapper_edge_points",
				Help:    "Edge size in points",
				Buckets: []float64{0.5, 1, 1.5, 2, 3, 4, 5, 7, 10},
			},
			[]string{"market"},
		),
		EdgeConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handicapper_edge_confidence",
				Help:    "Edge confidence score",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"market"},
		),
		EvaluateLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "handicapper_evaluate_duration_seconds",
				Help:    "Time to evaluate a slate",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),

		Recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handicapper_recommendations_total",
				Help: "Sized recommendations by status",
			},
			[]string{"tier", "status"},
		),
		StakeAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handicapper_stake_usd",
				Help:    "Recommended stake in USD",
				Buckets: []float64{10, 25, 50, 100, 150, 200, 300, 500, 1000},
			},
			[]string{"tier"},
		),
		Bankroll: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "handicapper_bankroll_usd",
				Help: "Bankroll state",
			},
			[]string{"kind"},
		),

		ClosingCaptured: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "handicapper_closing_lines_captured_total",
				Help: "Closing lines captured for placed bets",
			},
		),
		CLVPoints: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handicapper_clv",
				Help:    "Closing line value per bet (points, or cents for moneyline)",
				Buckets: []float64{-3, -2, -1, -0.5, 0, 0.5, 1, 2, 3},
			},
			[]string{"market"},
		),
		RollingCLV: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "handicapper_rolling_clv",
				Help: "Average CLV over the rolling window",
			},
		),

		RatingUpdates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "handicapper_rating_updates_total",
				Help: "Game results applied to ratings",
			},
		),
	}

	m.registry.MustRegister(
		m.GamesEvaluated,
		m.EdgesDetected,
		m.MarketsSkipped,
		m.EdgePoints,
		m.EdgeConfidence,
		m.EvaluateLatency,
		m.Recommendations,
		m.StakeAmount,
		m.Bankroll,
		m.ClosingCaptured,
		m.CLVPoints,
		m.RollingCLV,
		m.RatingUpdates,
	)

	return m
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEdge records a classified edge
func (m *Metrics) RecordEdge(league, market, tier string, points, confidence float64) {
	m.EdgesDetected.WithLabelValues(league, market, tier).Inc()
	m.EdgePoints.WithLabelValues(market).Observe(points)
	m.EdgeConfidence.WithLabelValues(market).Observe(confidence)
}

// RecordSkip records a market that produced no edge
func (m *Metrics) RecordSkip(league, market, reason string) {
	m.MarketsSkipped.WithLabelValues(league, market, reason).Inc()
}

// RecordRecommendation records a sized or blocked recommendation
func (m *Metrics) RecordRecommendation(tier string, blocked bool, reason string, stake decimal.Decimal) {
	status := "sized"
	if blocked {
		status = reason
	}
	m.Recommendations.WithLabelValues(tier, status).Inc()
	if !blocked {
		m.StakeAmount.WithLabelValues(tier).Observe(DecimalToFloat64(stake))
	}
}

// UpdateBankroll sets the bankroll gauges
func (m *Metrics) UpdateBankroll(current, weekStart, exposure decimal.Decimal) {
	m.Bankroll.WithLabelValues("current").Set(DecimalToFloat64(current))
	m.Bankroll.WithLabelValues("week_start").Set(DecimalToFloat64(weekStart))
	m.Bankroll.WithLabelValues("week_exposure").Set(DecimalToFloat64(exposure))
}

// RecordCLV records a captured closing line
func (m *Metrics) RecordCLV(market string, clv float64) {
	m.ClosingCaptured.Inc()
	m.CLVPoints.WithLabelValues(market).Observe(clv)
}

// DecimalToFloat64 converts money to a float for metrics
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
