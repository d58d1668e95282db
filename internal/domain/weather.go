package domain

// Series is one columnar time series as delivered by the forecast provider.
// Sample i covers the instant Start + i*Interval (unix seconds, UTC).
type Series struct {
	Start    int64
	Interval int64
}

// DailySeries holds the daily variables; slices are index-aligned.
type DailySeries struct {
	Series
	WeatherCode []int
	TempMax     []float64
	TempMin     []float64
}

// HourlySeries holds the hourly variables; slices are index-aligned.
type HourlySeries struct {
	Series
	WeatherCode []int
	IsDay       []bool
	Temperature []float64
}

// Forecast is a decoded provider response. Daily or Hourly may be nil when
// the provider omitted the block.
type Forecast struct {
	UTCOffsetSeconds int64
	Timezone         string
	Daily            *DailySeries
	Hourly           *HourlySeries
}

// DailyWeather is one calendar date's summary.
type DailyWeather struct {
	Date        string  `json:"date"`
	WeatherCode int     `json:"weatherCode"`
	TempMax     float64 `json:"temperatureMax"`
	TempMin     float64 `json:"temperatureMin"`
	Timezone    string  `json:"timezone"`
	IsClearSky  bool    `json:"isClearSky"`
}

// IsClearCode reports clear (0) or mainly clear (1) WMO weather codes.
func IsClearCode(code int) bool { return code == 0 || code == 1 }
