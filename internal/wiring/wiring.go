// Package wiring assembles providers and services from configuration.
package wiring

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"hoshizora/internal/adapters/openmeteo"
	"hoshizora/internal/adapters/rakuten"
	redisad "hoshizora/internal/adapters/redis"
	"hoshizora/internal/adapters/upstream"
	"hoshizora/internal/adapters/yolp"
	"hoshizora/internal/app"
	"hoshizora/internal/moon"
	"hoshizora/internal/shared"
)

// Services is everything the entry points need.
type Services struct {
	Weather *app.WeatherService
	Address *yolp.Client
	Lodging *app.LodgingService
	Search  *app.SearchService
	Moon    moon.Formatter

	quota *redisad.Quota
}

// Build validates credentials and wires every provider through its own
// executor. The redis quota is optional and only used when REDIS_ADDR is set.
func Build(ctx context.Context, cfg shared.Config) (*Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy := upstream.Policy{
		AttemptTimeout: cfg.UpstreamTimeout,
		Backoff:        upstream.ExponentialBackoff(cfg.UpstreamBackoff),
		RPS:            cfg.UpstreamRPS,
		Breaker:        cfg.BreakerEnabled,
	}

	var opts []upstream.Option
	s := &Services{}
	if cfg.RedisAddr != "" {
		s.quota = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, map[string]int{
			rakuten.Service: cfg.RakutenQuotaPerSec,
		})
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := s.quota.Ping(pctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, quota will admit everything until it recovers")
		}
		cancel()
		opts = append(opts, upstream.WithAdmitter(s.quota))
	}

	forecast := openmeteo.New(cfg.OpenMeteoBase, upstream.New(openmeteo.Service, policy, opts...))
	addr, err := yolp.New(cfg.YOLPBase, cfg.YahooAppID, upstream.New(yolp.Service, policy, opts...))
	if err != nil {
		return nil, err
	}
	lodging, err := rakuten.New(cfg.RakutenBase, cfg.RakutenAppID, upstream.New(rakuten.Service, policy, opts...))
	if err != nil {
		return nil, err
	}

	s.Moon = moon.NewFormatter(cfg.DateLocale, cfg.DisplayZone)
	s.Weather = app.NewWeatherService(forecast, app.ForecastHorizon{
		Min:  cfg.WeatherMinDate,
		Max:  cfg.WeatherMaxDate,
		Days: cfg.WeatherHorizonDays,
	})
	s.Address = addr
	s.Lodging = app.NewLodgingService(lodging, app.NewNormalizer(s.Moon))
	s.Search = app.NewSearchService(s.Weather, s.Address, s.Lodging, s.Moon)
	return s, nil
}

// Close releases the shared quota connection when one was opened.
func (s *Services) Close() error {
	if s.quota == nil {
		return nil
	}
	return s.quota.Close()
}
