// Package moon does new-moon arithmetic on a mean synodic month.
package moon

import (
	"math"
	"time"

	"golang.org/x/text/language"

	"hoshizora/internal/domain"
)

// SynodicMonthDays is the mean interval between new moons.
const SynodicMonthDays = 29.530588853

// Epoch is a known new moon.
var Epoch = time.Date(2000, time.January, 6, 18, 14, 0, 0, time.UTC)

const day = 24 * time.Hour

func elapsedDays(t time.Time) float64 { return t.Sub(Epoch).Hours() / 24 }

// NextNewMoon returns the first mean new moon at or after ref. Dates before
// Epoch yield Epoch.
func NextNewMoon(ref time.Time) time.Time {
	cycles := math.Max(0, math.Ceil(elapsedDays(ref)/SynodicMonthDays))
	return Epoch.Add(time.Duration(cycles * SynodicMonthDays * float64(day)))
}

// phaseDays is the fractional age in [0, SynodicMonthDays).
func phaseDays(t time.Time) float64 {
	a := math.Mod(elapsedDays(t), SynodicMonthDays)
	if a < 0 {
		a += SynodicMonthDays
	}
	return a
}

// Age is the whole number of days since the last new moon, 0..29.
func Age(t time.Time) int {
	return int(math.Floor(phaseDays(t)))
}

// Illumination is the lit fraction of the disc, 0 at new moon and 1 at full.
func Illumination(t time.Time) float64 {
	f := (1 - math.Cos(2*math.Pi*phaseDays(t)/SynodicMonthDays)) / 2
	return math.Round(f*100) / 100
}

var (
	supported = language.NewMatcher([]language.Tag{language.Japanese, language.English})
	japanese  = language.MustParseBase("ja")
)

// Formatter renders moon dates for one locale and time zone.
type Formatter struct {
	tag language.Tag
	loc *time.Location
}

// NewFormatter picks the closest supported locale for the given
// Accept-Language style string. A nil loc means UTC.
func NewFormatter(locale string, loc *time.Location) Formatter {
	tag, _ := language.MatchStrings(supported, locale)
	if loc == nil {
		loc = time.UTC
	}
	return Formatter{tag: tag, loc: loc}
}

// WithLocale returns a copy for another locale, keeping the time zone.
func (f Formatter) WithLocale(locale string) Formatter {
	return NewFormatter(locale, f.loc)
}

func (f Formatter) Locale() string { return f.tag.String() }

// Long formats t as a long calendar date.
func (f Formatter) Long(t time.Time) string {
	if f.loc != nil {
		t = t.In(f.loc)
	}
	if b, _ := f.tag.Base(); b == japanese {
		return t.Format("2006年1月2日")
	}
	return t.Format("January 2, 2006")
}

// NextNewMoon formats the next new moon after ref.
func (f Formatter) NextNewMoon(ref time.Time) string {
	return f.Long(NextNewMoon(ref))
}

// Info summarizes the moon for ref.
func (f Formatter) Info(ref time.Time) domain.MoonInfo {
	return domain.MoonInfo{
		NextNewMoon:  f.NextNewMoon(ref),
		Age:          Age(ref),
		Illumination: Illumination(ref),
	}
}
