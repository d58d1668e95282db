// Command scout runs the clear-sky search for several regions over a range of
// dates and logs one line per result.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hoshizora/internal/adapters/observability"
	"hoshizora/internal/domain"
	"hoshizora/internal/shared"
	"hoshizora/internal/wiring"
)

func main() {
	var (
		regionsFlag = flag.String("regions", "", "comma separated region slugs (default: all)")
		fromFlag    = flag.String("from", "", "first date, YYYY-MM-DD (default: today)")
		daysFlag    = flag.Int("days", 7, "number of consecutive dates")
	)
	flag.Parse()

	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel).With().
		Str("run_id", uuid.NewString()).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	regions, err := pickRegions(*regionsFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("bad -regions")
	}
	dates, err := dateRange(*fromFlag, *daysFlag, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("bad -from/-days")
	}

	svc, err := wiring.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service wiring failed")
	}
	defer svc.Close()

	log.Info().
		Int("regions", len(regions)).
		Int("dates", len(dates)).
		Int("workers", cfg.ScoutWorkers).
		Msg("scout starting")

	sem := semaphore.NewWeighted(int64(max(1, cfg.ScoutWorkers)))
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		clear int
	)

loop:
	for _, reg := range regions {
		for _, d := range dates {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				log.Warn().Err(err).Msg("scout interrupted")
				break loop
			}

			wg.Add(1)
			go func(reg shared.Region, d time.Time) {
				defer wg.Done()
				defer sem.Release(1)

				res, err := svc.Search.Search(ctx, reg.Coord, d)
				ev := log.With().Str("region", reg.Slug).Str("date", d.Format(domain.DateLayout)).Logger()
				if err != nil {
					ev.Warn().Err(err).Str("kind", domain.KindOf(err).String()).Msg("search failed")
					return
				}
				if res.Weather.IsClearSky {
					mu.Lock()
					clear++
					mu.Unlock()
				}
				best := ""
				if len(res.Accommodations) > 0 {
					best = res.Accommodations[0].Name
				}
				ev.Info().
					Bool("clear", res.Weather.IsClearSky).
					Int("weather_code", res.Weather.WeatherCode).
					Int("vacancies", len(res.Accommodations)).
					Str("best", best).
					Str("next_new_moon", res.Moon.NextNewMoon).
					Msg("search ok")
			}(reg, d)
		}
	}

	wg.Wait()
	log.Info().Int("clear_nights", clear).Msg("scout completed")
}

func pickRegions(s string) ([]shared.Region, error) {
	if strings.TrimSpace(s) == "" {
		return shared.Regions(), nil
	}
	var out []shared.Region
	for _, name := range strings.Split(s, ",") {
		r, ok := shared.LookupRegion(name)
		if !ok {
			return nil, domain.Validationf("regions", "unknown region %q", strings.TrimSpace(name))
		}
		out = append(out, r)
	}
	return out, nil
}

func dateRange(from string, days int, now time.Time) ([]time.Time, error) {
	if days <= 0 {
		return nil, domain.Validationf("days", "days must be positive")
	}
	start := domain.Day(now.UTC())
	if from != "" {
		d, err := domain.ParseDate(from)
		if err != nil {
			return nil, err
		}
		start = d
	}
	out := make([]time.Time, days)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out, nil
}
