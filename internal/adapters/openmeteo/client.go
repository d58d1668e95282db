package openmeteo

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"hoshizora/internal/adapters/upstream"
	"hoshizora/internal/domain"
)

const (
	Service     = "openmeteo"
	DefaultBase = "https://api.open-meteo.com/v1/forecast"

	dailyVars  = "weather_code,temperature_2m_max,temperature_2m_min"
	hourlyVars = "weather_code,is_day,temperature_2m"
)

// Client reads daily and hourly forecasts from the Open-Meteo API.
type Client struct {
	base string
	ex   *upstream.Executor
}

func New(base string, ex *upstream.Executor) *Client {
	if base == "" {
		base = DefaultBase
	}
	return &Client{base: strings.TrimRight(base, "/"), ex: ex}
}

func (c *Client) Forecast(ctx context.Context, coord domain.Coordinate, w domain.DateWindow) (domain.Forecast, error) {
	if err := coord.Validate(); err != nil {
		return domain.Forecast{}, err
	}
	return upstream.Fetch[domain.Forecast](ctx, c.ex, forecastEndpoint{base: c.base, coord: coord, window: w})
}

type forecastEndpoint struct {
	base   string
	coord  domain.Coordinate
	window domain.DateWindow
}

func (e forecastEndpoint) Request() (upstream.Request, error) {
	u, err := url.Parse(e.base)
	if err != nil {
		return upstream.Request{}, domain.Wrap(err, domain.KindConfig, Service, "bad base url")
	}
	q := u.Query()
	q.Set("latitude", e.coord.LatString())
	q.Set("longitude", e.coord.LonString())
	q.Set("daily", dailyVars)
	q.Set("hourly", hourlyVars)
	q.Set("timezone", "auto")
	q.Set("timeformat", "unixtime")
	q.Set("start_date", e.window.Start.Format(domain.DateLayout))
	q.Set("end_date", e.window.End.Format(domain.DateLayout))
	u.RawQuery = q.Encode()
	return upstream.Request{URL: u.String()}, nil
}

/********** wire shape **********/

type wireResponse struct {
	UTCOffsetSeconds int64       `json:"utc_offset_seconds"`
	Timezone         string      `json:"timezone"`
	Daily            *wireDaily  `json:"daily"`
	Hourly           *wireHourly `json:"hourly"`
	Error            bool        `json:"error"`
	Reason           string      `json:"reason"`
}

type wireDaily struct {
	Time        []int64    `json:"time"`
	WeatherCode []*int     `json:"weather_code"`
	TempMax     []*float64 `json:"temperature_2m_max"`
	TempMin     []*float64 `json:"temperature_2m_min"`
}

type wireHourly struct {
	Time        []int64    `json:"time"`
	WeatherCode []*int     `json:"weather_code"`
	IsDay       []*int     `json:"is_day"`
	Temperature []*float64 `json:"temperature_2m"`
}

func (forecastEndpoint) Parse(body []byte) (domain.Forecast, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return domain.Forecast{}, domain.Upstreamf(Service, "empty response body")
	}
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.Forecast{}, domain.Wrap(err, domain.KindUpstream, Service, "decode forecast")
	}
	if w.Error {
		return domain.Forecast{}, domain.Upstreamf(Service, "provider error: %s", w.Reason)
	}
	out := domain.Forecast{UTCOffsetSeconds: w.UTCOffsetSeconds, Timezone: w.Timezone}
	if w.Daily != nil {
		out.Daily = &domain.DailySeries{
			Series:      series(w.Daily.Time, 86400),
			WeatherCode: codes(w.Daily.WeatherCode),
			TempMax:     floats(w.Daily.TempMax),
			TempMin:     floats(w.Daily.TempMin),
		}
	}
	if w.Hourly != nil {
		isDay := make([]bool, len(w.Hourly.IsDay))
		for i, v := range w.Hourly.IsDay {
			// unknown counts as daytime so it never votes in the night check
			isDay[i] = v == nil || *v != 0
		}
		out.Hourly = &domain.HourlySeries{
			Series:      series(w.Hourly.Time, 3600),
			WeatherCode: codes(w.Hourly.WeatherCode),
			IsDay:       isDay,
			Temperature: floats(w.Hourly.Temperature),
		}
	}
	return out, nil
}

// series derives start and sampling interval from the time axis. A single
// sample falls back to the nominal interval.
func series(ts []int64, nominal int64) domain.Series {
	switch len(ts) {
	case 0:
		return domain.Series{}
	case 1:
		return domain.Series{Start: ts[0], Interval: nominal}
	default:
		return domain.Series{Start: ts[0], Interval: ts[1] - ts[0]}
	}
}

// codes maps missing weather codes to -1, which is never clear.
func codes(in []*int) []int {
	out := make([]int, len(in))
	for i, v := range in {
		if v == nil {
			out[i] = -1
			continue
		}
		out[i] = *v
	}
	return out
}

func floats(in []*float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		if v != nil {
			out[i] = *v
		}
	}
	return out
}
