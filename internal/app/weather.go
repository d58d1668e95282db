package app

import (
	"context"
	"sort"
	"time"

	"hoshizora/internal/domain"
)

// nightClearRatio is the share of clear night samples needed to call a date clear.
const nightClearRatio = 0.8

// ForecastHorizon bounds the dates the forecast provider will answer for.
// Zero Min/Max are relative to today; Days is the horizon length in that case.
type ForecastHorizon struct {
	Min  time.Time
	Max  time.Time
	Days int
	Now  func() time.Time
}

// Window resolves the horizon against the current date.
func (h ForecastHorizon) Window() domain.DateWindow {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	today := domain.Day(now().UTC())
	start, end := h.Min, h.Max
	if start.IsZero() {
		start = today
	}
	if end.IsZero() {
		days := h.Days
		if days <= 0 {
			days = 16
		}
		end = today.AddDate(0, 0, days)
	}
	return domain.DateWindow{Start: domain.Day(start), End: domain.Day(end)}
}

type WeatherService struct {
	fc      domain.ForecastClient
	horizon ForecastHorizon
}

func NewWeatherService(fc domain.ForecastClient, h ForecastHorizon) *WeatherService {
	return &WeatherService{fc: fc, horizon: h}
}

func (s *WeatherService) Horizon() domain.DateWindow { return s.horizon.Window() }

// Day returns the summary for a single date.
func (s *WeatherService) Day(ctx context.Context, c domain.Coordinate, date time.Time) (domain.DailyWeather, error) {
	out, err := s.Range(ctx, c, domain.SingleDay(date))
	if err != nil {
		return domain.DailyWeather{}, err
	}
	if len(out) != 1 {
		return domain.DailyWeather{}, domain.Upstreamf("weather", "expected one summary for %s, got %d",
			date.Format(domain.DateLayout), len(out))
	}
	return out[0], nil
}

// Range returns one summary per date in w, ascending. Dates outside the
// forecast horizon fail before any request is made.
func (s *WeatherService) Range(ctx context.Context, c domain.Coordinate, w domain.DateWindow) ([]domain.DailyWeather, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if w.Start.After(w.End) {
		return nil, domain.Rangef("weather", "start %s is after end %s",
			w.Start.Format(domain.DateLayout), w.End.Format(domain.DateLayout))
	}
	allowed := s.horizon.Window()
	if !w.Within(allowed) {
		return nil, domain.Rangef("weather", "%s is outside the forecast window %s", w, allowed)
	}

	f, err := s.fc.Forecast(ctx, c, w)
	if err != nil {
		return nil, err
	}
	out, err := Summarize(f, w)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.Upstreamf("weather", "forecast has no dates inside %s", w)
	}
	return out, nil
}

// Summarize aligns the daily series to calendar dates in the provider's UTC
// offset and applies the night-sky check from the hourly series.
func Summarize(f domain.Forecast, w domain.DateWindow) ([]domain.DailyWeather, error) {
	d := f.Daily
	if d == nil {
		return nil, domain.Upstreamf("weather", "response has no daily series")
	}
	switch {
	case len(d.WeatherCode) == 0:
		return nil, domain.Upstreamf("weather", "daily weather_code is empty")
	case len(d.TempMax) == 0:
		return nil, domain.Upstreamf("weather", "daily temperature_2m_max is empty")
	case len(d.TempMin) == 0:
		return nil, domain.Upstreamf("weather", "daily temperature_2m_min is empty")
	}
	if d.Interval <= 0 {
		return nil, domain.Upstreamf("weather", "daily interval %d is not positive", d.Interval)
	}

	nights, err := nightTallies(f.Hourly, f.UTCOffsetSeconds)
	if err != nil {
		return nil, err
	}

	n := min(len(d.WeatherCode), len(d.TempMax), len(d.TempMin))
	out := make([]domain.DailyWeather, 0, n)
	for i := 0; i < n; i++ {
		key := dateKey(d.Start+int64(i)*d.Interval, f.UTCOffsetSeconds)
		if !w.ContainsKey(key) {
			continue
		}
		clear := domain.IsClearCode(d.WeatherCode[i])
		if t, ok := nights[key]; ok && t.total > 0 {
			clear = float64(t.clear)/float64(t.total) >= nightClearRatio
		}
		out = append(out, domain.DailyWeather{
			Date:        key,
			WeatherCode: d.WeatherCode[i],
			TempMax:     d.TempMax[i],
			TempMin:     d.TempMin[i],
			Timezone:    f.Timezone,
			IsClearSky:  clear,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

type tally struct{ clear, total int }

// nightTallies counts night samples per local date. A missing hourly block
// yields no tallies and every date keeps its daily flag; a present block with
// an empty variable is malformed.
func nightTallies(h *domain.HourlySeries, offset int64) (map[string]tally, error) {
	out := map[string]tally{}
	if h == nil {
		return out, nil
	}
	switch {
	case len(h.WeatherCode) == 0:
		return nil, domain.Upstreamf("weather", "hourly weather_code is empty")
	case len(h.IsDay) == 0:
		return nil, domain.Upstreamf("weather", "hourly is_day is empty")
	case len(h.Temperature) == 0:
		return nil, domain.Upstreamf("weather", "hourly temperature_2m is empty")
	}
	n := min(len(h.WeatherCode), len(h.IsDay))
	if h.Interval <= 0 {
		return nil, domain.Upstreamf("weather", "hourly interval %d is not positive", h.Interval)
	}
	for i := 0; i < n; i++ {
		if h.IsDay[i] {
			continue
		}
		key := dateKey(h.Start+int64(i)*h.Interval, offset)
		t := out[key]
		t.total++
		if domain.IsClearCode(h.WeatherCode[i]) {
			t.clear++
		}
		out[key] = t
	}
	return out, nil
}

// dateKey shifts a unix timestamp by the offset and formats the UTC date.
func dateKey(ts, offset int64) string {
	return time.Unix(ts+offset, 0).UTC().Format(domain.DateLayout)
}
