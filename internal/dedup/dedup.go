package dedup

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Deduplicator remembers published output in Redis for a TTL
type Deduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator(client *redis.Client, ttl time.Duration) *Deduplicator {
	return &Deduplicator{
		client: client,
		ttl:    ttl,
	}
}

// ShouldPublish returns true the first time key is seen within the TTL
func (d *Deduplicator) ShouldPublish(ctx context.Context, key string) (bool, error) {
	set, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set dedup key: %w", err)
	}
	return set, nil
}

// Clear removes a dedup entry
func (d *Deduplicator) Clear(ctx context.Context, key string) error {
	return d.client.Del(ctx, key).Err()
}

// EdgeKey identifies an edge by game, market, side, the number bet and the
// edge size at one decimal
func EdgeKey(e models.Edge) string {
	return fmt.Sprintf("handicapper:dedup:edge:%s:%s:%s:%s",
		e.GameID, e.MarketType, e.Side,
		digest(fmt.Sprintf("%.1f|%d|%.1f", e.BetLine, e.Price, e.EdgePoints)))
}

// RecommendationKey identifies a recommendation by its edge, tier and stake
func RecommendationKey(rec models.BetRecommendation) string {
	e := rec.Edge
	return fmt.Sprintf("handicapper:dedup:rec:%s:%s:%s:%s",
		e.GameID, e.MarketType, rec.Side,
		digest(fmt.Sprintf("%.1f|%d|%s|%s|%t", e.BetLine, e.Price, rec.Tier, rec.StakeAmount.StringFixed(2), rec.Blocked)))
}

func digest(s string) string {
	hash := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", hash[:8])
}

// Checker decides whether a key has already been published
type Checker interface {
	ShouldPublish(ctx context.Context, key string) (bool, error)
}

// Clearer forgets a key so it can be published again
type Clearer interface {
	Clear(ctx context.Context, key string) error
}

// Publisher suppresses repeats of unchanged edges and recommendations when
// the same slate is evaluated again. Checker failures publish anyway. When
// the checker is also a Clearer, a failed publish releases its key.
type Publisher struct {
	next    contracts.Publisher
	checker Checker
	log     zerolog.Logger
}

// NewPublisher wraps next
func NewPublisher(next contracts.Publisher, checker Checker, log zerolog.Logger) *Publisher {
	return &Publisher{
		next:    next,
		checker: checker,
		log:     log.With().Str("component", "dedup").Logger(),
	}
}

// PublishEdge implements contracts.Publisher
func (p *Publisher) PublishEdge(ctx context.Context, edge models.Edge) error {
	key := EdgeKey(edge)
	if !p.shouldPublish(ctx, key) {
		return nil
	}
	if err := p.next.PublishEdge(ctx, edge); err != nil {
		p.release(ctx, key)
		return err
	}
	return nil
}

// PublishRecommendation implements contracts.Publisher
func (p *Publisher) PublishRecommendation(ctx context.Context, rec models.BetRecommendation) error {
	key := RecommendationKey(rec)
	if !p.shouldPublish(ctx, key) {
		return nil
	}
	if err := p.next.PublishRecommendation(ctx, rec); err != nil {
		p.release(ctx, key)
		return err
	}
	return nil
}

func (p *Publisher) shouldPublish(ctx context.Context, key string) bool {
	ok, err := p.checker.ShouldPublish(ctx, key)
	if err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("dedup check failed, publishing")
		return true
	}
	return ok
}

func (p *Publisher) release(ctx context.Context, key string) {
	clearer, ok := p.checker.(Clearer)
	if !ok {
		return
	}
	if err := clearer.Clear(ctx, key); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("failed to release dedup key")
	}
}
