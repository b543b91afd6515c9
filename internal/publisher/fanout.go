package publisher

import (
	"context"
	"errors"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
)

// Fanout publishes to every target and joins their errors
type Fanout []contracts.Publisher

// PublishEdge implements contracts.Publisher
func (f Fanout) PublishEdge(ctx context.Context, edge models.Edge) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishEdge(ctx, edge); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishRecommendation implements contracts.Publisher
func (f Fanout) PublishRecommendation(ctx context.Context, rec models.BetRecommendation) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishRecommendation(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
