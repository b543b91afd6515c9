package dedup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/dedup"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type seenSet struct {
	keys map[string]bool
	err  error
}

func (s *seenSet) ShouldPublish(_ context.Context, key string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *seenSet) Clear(_ context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

type countingPublisher struct {
	edges int
	recs  int
	err   error
}

func (c *countingPublisher) PublishEdge(context.Context, models.Edge) error {
	c.edges++
	return c.err
}

func (c *countingPublisher) PublishRecommendation(context.Context, models.BetRecommendation) error {
	c.recs++
	return nil
}

func edge(points float64) models.Edge {
	return models.Edge{
		GameID:     "g1",
		MarketType: models.MarketSpread,
		Side:       models.SideHome,
		BetLine:    -3,
		Price:      -110,
		EdgePoints: points,
	}
}

func TestEdgeKey(t *testing.T) {
	a := dedup.EdgeKey(edge(2.51))
	assert.Equal(t, a, dedup.EdgeKey(edge(2.49)), "same edge at one decimal")
	assert.NotEqual(t, a, dedup.EdgeKey(edge(3.0)))
	assert.Contains(t, a, "handicapper:dedup:edge:g1:SPREAD:HOME:")
}

func TestRecommendationKey(t *testing.T) {
	rec := models.BetRecommendation{
		Edge:        edge(2.5),
		Side:        models.SideHome,
		Tier:        models.TierModerate,
		StakeAmount: decimal.NewFromInt(150),
	}
	key := dedup.RecommendationKey(rec)

	resized := rec
	resized.StakeAmount = decimal.NewFromInt(120)
	assert.NotEqual(t, key, dedup.RecommendationKey(resized))

	blocked := rec
	blocked.Blocked = true
	assert.NotEqual(t, key, dedup.RecommendationKey(blocked))
}

func TestPublisher_SuppressesRepeats(t *testing.T) {
	ctx := context.Background()
	next := &countingPublisher{}
	p := dedup.NewPublisher(next, &seenSet{keys: map[string]bool{}}, zerolog.Nop())

	rec := models.BetRecommendation{Edge: edge(2.5), Side: models.SideHome, Tier: models.TierModerate, StakeAmount: decimal.NewFromInt(150)}
	for i := 0; i < 3; i++ {
		assert.NoError(t, p.PublishEdge(ctx, edge(2.5)))
		assert.NoError(t, p.PublishRecommendation(ctx, rec))
	}
	assert.NoError(t, p.PublishEdge(ctx, edge(4.0)))

	assert.Equal(t, 2, next.edges)
	assert.Equal(t, 1, next.recs)
}

func TestPublisher_FailsOpen(t *testing.T) {
	next := &countingPublisher{}
	p := dedup.NewPublisher(next, &seenSet{err: errors.New("redis down")}, zerolog.Nop())

	assert.NoError(t, p.PublishEdge(context.Background(), edge(2.5)))
	assert.NoError(t, p.PublishEdge(context.Background(), edge(2.5)))
	assert.Equal(t, 2, next.edges)
}

func TestPublisher_ReleasesKeyOnFailure(t *testing.T) {
	ctx := context.Background()
	down := errors.New("stream down")
	next := &countingPublisher{err: down}
	p := dedup.NewPublisher(next, &seenSet{keys: map[string]bool{}}, zerolog.Nop())

	assert.ErrorIs(t, p.PublishEdge(ctx, edge(2.5)), down)

	next.err = nil
	assert.NoError(t, p.PublishEdge(ctx, edge(2.5)))
	assert.NoError(t, p.PublishEdge(ctx, edge(2.5)))
	assert.Equal(t, 2, next.edges, "retried after the failure, then suppressed")
}
