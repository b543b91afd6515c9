package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	EdgesStream           = "handicapper.edges"
	RecommendationsStream = "handicapper.recommendations"
)

// StreamPublisher publishes edges and recommendations to Redis Streams
type StreamPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewStreamPublisher creates a new stream publisher. Streams are trimmed to
// roughly maxLen entries (0 = untrimmed).
func NewStreamPublisher(client *redis.Client, maxLen int64) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		maxLen: maxLen,
	}
}

// EdgeStreamKey returns the league-specific edge stream
func EdgeStreamKey(league string) string {
	return fmt.Sprintf("%s.%s", EdgesStream, league)
}

// PublishEdge publishes to the league stream and the global edge stream
func (p *StreamPublisher) PublishEdge(ctx context.Context, edge models.Edge) error {
	payload, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}

	if err := p.add(ctx, EdgeStreamKey(edge.League), payload); err != nil {
		return err
	}
	return p.add(ctx, EdgesStream, payload)
}

// PublishRecommendation publishes to the recommendations stream
func (p *StreamPublisher) PublishRecommendation(ctx context.Context, rec models.BetRecommendation) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation: %w", err)
	}
	return p.add(ctx, RecommendationsStream, payload)
}

func (p *StreamPublisher) add(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data": string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return nil
}
