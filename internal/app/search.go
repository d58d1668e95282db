package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hoshizora/internal/adapters/observability"
	"hoshizora/internal/domain"
	"hoshizora/internal/moon"
)

// SearchService answers one location/date query across all providers.
type SearchService struct {
	weather *WeatherService
	address domain.AddressClient
	lodging *LodgingService
	moon    moon.Formatter
}

func NewSearchService(w *WeatherService, a domain.AddressClient, l *LodgingService, m moon.Formatter) *SearchService {
	return &SearchService{weather: w, address: a, lodging: l, moon: m}
}

// Search runs weather, address and lodging concurrently. A cloudy forecast
// returns no accommodations; that is a result, not an error.
func (s *SearchService) Search(ctx context.Context, c domain.Coordinate, date time.Time) (domain.SearchResult, error) {
	aggID := uuid.NewString()
	start := time.Now()
	logger := log.With().Str("aggregation_id", aggID).
		Str("date", date.Format(domain.DateLayout)).
		Float64("lat", c.Lat).Float64("lon", c.Lon).Logger()

	if err := c.Validate(); err != nil {
		return domain.SearchResult{}, err
	}
	date = domain.Day(date)

	var (
		weather domain.DailyWeather
		address string
		stays   []domain.Accommodation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		weather, err = s.weather.Day(gctx, c, date)
		return err
	})
	g.Go(func() (err error) {
		address, err = s.address.ReverseGeocode(gctx, c)
		return err
	})
	g.Go(func() (err error) {
		stays, err = s.lodging.Search(gctx, c, []time.Time{date})
		return err
	})
	if err := g.Wait(); err != nil {
		observability.ObserveAggregation("error")
		logger.Error().Err(err).Str("kind", domain.KindOf(err).String()).Msg("aggregation failed")
		return domain.SearchResult{}, err
	}

	res := domain.SearchResult{
		Accommodations: []domain.Accommodation{},
		Address:        address,
		Coordinate:     c,
		Weather:        weather,
		Moon:           s.moon.Info(date),
	}
	if !weather.IsClearSky {
		observability.ObserveAggregation("cloudy")
		logger.Info().Int("weather_code", weather.WeatherCode).Dur("took", time.Since(start)).
			Msg("sky not clear, lodging withheld")
		return res, nil
	}

	res.Accommodations = Decorate(stays, address)
	observability.ObserveAggregation("clear")
	logger.Info().Int("accommodations", len(res.Accommodations)).Dur("took", time.Since(start)).
		Msg("aggregation done")
	return res, nil
}

// Decorate drops fully booked records, fills missing location data from the
// resolved address and orders by rating, then clear-sky probability, then id.
func Decorate(in []domain.Accommodation, address string) []domain.Accommodation {
	fallbackPref, _ := splitPrefecture(address)
	out := make([]domain.Accommodation, 0, len(in))
	for _, a := range in {
		if a.AvailableRooms <= 0 {
			continue
		}
		if a.Location == "" || a.Location == domain.UnknownPrefecture {
			a.Location = address
		}
		if a.Prefecture == "" || a.Prefecture == domain.UnknownPrefecture {
			a.Prefecture = fallbackPref
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		if out[i].ClearSkyProbability != out[j].ClearSkyProbability {
			return out[i].ClearSkyProbability > out[j].ClearSkyProbability
		}
		return out[i].ID < out[j].ID
	})
	return out
}
