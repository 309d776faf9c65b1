package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/productmatch/backend/internal/domain"
)

// MatchBatch matches records concurrently with at most BatchWorkers in flight.
// Results keep the input order. The first index failure cancels the remaining
// records and is returned.
func (s *MatchingService) MatchBatch(ctx context.Context, queries []domain.Query) ([]*domain.MatchResult, error) {
	results := make([]*domain.MatchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchWorkers)

	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := s.Match(gctx, q)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
