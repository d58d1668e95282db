package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"hoshizora/internal/domain"
)

type LodgingService struct {
	client domain.LodgingClient
	norm   *Normalizer
}

func NewLodgingService(c domain.LodgingClient, n *Normalizer) *LodgingService {
	return &LodgingService{client: c, norm: n}
}

// Search queries every date concurrently, once per entry even when a date
// repeats, and merges the results. Any failed date fails the whole search.
func (s *LodgingService) Search(ctx context.Context, c domain.Coordinate, dates []time.Time) ([]domain.Accommodation, error) {
	if len(dates) == 0 {
		return nil, domain.Validationf("lodging", "at least one date is required")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	perDate := make([][]domain.Accommodation, len(dates))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range dates {
		i, d := i, domain.Day(d)
		g.Go(func() error {
			raw, err := s.client.VacantHotels(gctx, c, d)
			if err != nil {
				return err
			}
			perDate[i] = s.norm.Normalize(raw, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(perDate...), nil
}
