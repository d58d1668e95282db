package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"hoshizora/internal/domain"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	CORSOrigins []string

	YahooAppID   string
	RakutenAppID string

	OpenMeteoBase string
	YOLPBase      string
	RakutenBase   string

	UpstreamTimeout time.Duration
	UpstreamBackoff time.Duration
	UpstreamRPS     int
	BreakerEnabled  bool

	WeatherMinDate     time.Time
	WeatherMaxDate     time.Time
	WeatherHorizonDays int

	DateLocale   string
	DisplayZone  *time.Location
	ScoutWorkers int

	RedisAddr          string
	RedisPass          string
	RedisDB            int
	RakutenQuotaPerSec int
}

// Load reads the environment, after merging a .env file when one exists.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env could not be read")
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),

		YahooAppID:   strings.TrimSpace(os.Getenv("YAHOO_APP_ID")),
		RakutenAppID: strings.TrimSpace(os.Getenv("RAKUTEN_APP_ID")),

		OpenMeteoBase: env("OPEN_METEO_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		YOLPBase:      env("YOLP_BASE_URL", "https://map.yahooapis.jp/geoapi/V1/reverseGeoCoder"),
		RakutenBase:   env("RAKUTEN_BASE_URL", "https://app.rakuten.co.jp/services/api/Travel/VacantHotelSearch/20170426"),

		UpstreamTimeout: time.Duration(atoi("UPSTREAM_TIMEOUT_MS", 10000)) * time.Millisecond,
		UpstreamBackoff: time.Duration(atoi("UPSTREAM_BACKOFF_MS", 200)) * time.Millisecond,
		UpstreamRPS:     atoi("UPSTREAM_RPS", 0),
		BreakerEnabled:  atob("BREAKER_ENABLED", true),

		WeatherHorizonDays: atoi("WEATHER_HORIZON_DAYS", 16),

		DateLocale:   env("DATE_LOCALE", "ja"),
		DisplayZone:  time.FixedZone("JST", 9*60*60),
		ScoutWorkers: atoi("SCOUT_WORKERS", 4),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPass:          env("REDIS_PASSWORD", ""),
		RedisDB:            atoi("REDIS_DB", 0),
		RakutenQuotaPerSec: atoi("RAKUTEN_QUOTA_PER_SEC", 1),
	}

	var err error
	if c.WeatherMinDate, err = optionalDate("WEATHER_MIN_DATE"); err != nil {
		return Config{}, err
	}
	if c.WeatherMaxDate, err = optionalDate("WEATHER_MAX_DATE"); err != nil {
		return Config{}, err
	}
	if !c.WeatherMinDate.IsZero() && !c.WeatherMaxDate.IsZero() && c.WeatherMinDate.After(c.WeatherMaxDate) {
		return Config{}, domain.Configf("config", "WEATHER_MIN_DATE is after WEATHER_MAX_DATE")
	}
	return c, nil
}

// Validate reports missing provider credentials. Both are required.
func (c Config) Validate() error {
	var missing []string
	if c.YahooAppID == "" {
		missing = append(missing, "YAHOO_APP_ID")
	}
	if c.RakutenAppID == "" {
		missing = append(missing, "RAKUTEN_APP_ID")
	}
	if len(missing) > 0 {
		return domain.Configf("config", "missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer setting")
	}
	return def
}

func atob(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func optionalDate(k string) (time.Time, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return time.Time{}, nil
	}
	d, err := domain.ParseDate(v)
	if err != nil {
		return time.Time{}, domain.Wrap(err, domain.KindConfig, "config", k+" is not a date")
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
