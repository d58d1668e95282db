package app

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"hoshizora/internal/domain"
	"hoshizora/internal/moon"
)

// PlaceholderImage is used when a listing carries no image.
const PlaceholderImage = "https://placehold.jp/24/cccccc/ffffff/640x400.png?text=No%20Image"

/********** alias registries (single source of truth) **********/

var hotelAliases = map[string][]string{
	"id":       {"hotelBasicInfo.hotelNo", "hotelNo", "id"},
	"name":     {"hotelBasicInfo.hotelName", "hotelName", "name"},
	"address1": {"hotelBasicInfo.address1", "address1", "address"},
	"address2": {"hotelBasicInfo.address2", "address2"},
	"station":  {"hotelBasicInfo.nearestStation", "nearestStation"},
	"image":    {"hotelBasicInfo.hotelImageUrl", "hotelImageUrl", "imageUrl"},
	"thumb":    {"hotelBasicInfo.hotelThumbnailUrl", "hotelThumbnailUrl"},
}

var hotelNumbers = map[string][]string{
	"price":    {"hotelBasicInfo.hotelMinCharge", "hotelMinCharge"},
	"review":   {"hotelBasicInfo.reviewAverage", "reviewAverage"},
	"total":    {"hotelRatingInfo.totalAverage", "hotelRatingInfo.total", "totalAverage"},
	"location": {"hotelRatingInfo.locationAverage", "locationAverage"},
	"lat":      {"hotelBasicInfo.latitude", "latitude"},
	"rooms":    {"hotelDetailInfo.hotelRoomNum", "hotelDetailInfo.roomNum", "hotelRoomNum", "roomNum"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "". Numbers are rendered without exponent.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func finite(p *float64) bool { return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) }

/********** address handling **********/

var prefecturePattern = regexp.MustCompile(`^(東京都|北海道|(?:京都|大阪)府|.{2,3}県)(.*)$`)

// cleanText folds full-width forms and drops control characters.
var cleanText = transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.Cc)))

func normalizeText(s string) string {
	out, _, err := transform.String(cleanText, s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(out)
}

// splitPrefecture separates the top-level region from the rest of an address.
// Without a recognizable suffix the whole string is the prefecture.
func splitPrefecture(addr string) (prefecture, city string) {
	addr = normalizeText(addr)
	if addr == "" {
		return domain.UnknownPrefecture, ""
	}
	if m := prefecturePattern.FindStringSubmatch(addr); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return addr, ""
}

/********** derived estimates **********/

func roundTo(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clearSkyProbability is a heuristic from rating metadata, not a forecast.
func clearSkyProbability(locationScore *float64, rating float64) int {
	base := rating
	if finite(locationScore) {
		base = *locationScore
	}
	return clampInt(int(math.Round(base*18)), 40, 95)
}

func lightPollution(locationScore, lat *float64) domain.LightPollution {
	if finite(locationScore) {
		switch s := *locationScore; {
		case s >= 4.5:
			return domain.LightLow
		case s >= 3.5:
			return domain.LightMedium
		default:
			return domain.LightHigh
		}
	}
	if finite(lat) {
		if *lat >= 40 || *lat <= 30 {
			return domain.LightLow
		}
		return domain.LightMedium
	}
	return domain.LightMedium
}

func altitude(lat *float64) int {
	if !finite(lat) {
		return 0
	}
	return int(math.Round(math.Abs(*lat-35) * 120))
}

/********** hotel mapper **********/

// Normalizer turns raw lodging entries into accommodation records.
type Normalizer struct {
	moon moon.Formatter
}

func NewNormalizer(f moon.Formatter) *Normalizer { return &Normalizer{moon: f} }

// Normalize maps every usable entry for one stay date. Entries without an id
// or a name are skipped.
func (n *Normalizer) Normalize(raw []map[string]any, stay time.Time) []domain.Accommodation {
	nextNewMoon := n.moon.NextNewMoon(stay)
	out := make([]domain.Accommodation, 0, len(raw))
	for _, h := range raw {
		a, ok := mapHotel(h, nextNewMoon)
		if !ok {
			log.Debug().Str("context", "Normalize").Msg("lodging entry without id or name dropped")
			continue
		}
		out = append(out, a)
	}
	return out
}

func mapHotel(h map[string]any, nextNewMoon string) (domain.Accommodation, bool) {
	id := firstNonEmptyAlias(h, hotelAliases, "id")
	name := firstNonEmptyAlias(h, hotelAliases, "name")
	if id == "" || name == "" {
		return domain.Accommodation{}, false
	}

	prefecture, city := splitPrefecture(firstNonEmptyAlias(h, hotelAliases, "address1"))
	location := joinNonEmpty(
		city,
		normalizeText(firstNonEmptyAlias(h, hotelAliases, "address2")),
		normalizeText(firstNonEmptyAlias(h, hotelAliases, "station")),
	)
	if location == "" {
		location = prefecture
	}

	rating := 0.0
	if f := getFloatFlexible(h, hotelNumbers["review"]...); finite(f) {
		rating = *f
	} else if f := getFloatFlexible(h, hotelNumbers["total"]...); finite(f) {
		rating = *f
	}
	rating = roundTo(rating, 1)

	locScore := getFloatFlexible(h, hotelNumbers["location"]...)
	lat := getFloatFlexible(h, hotelNumbers["lat"]...)

	rooms := 1
	if f := getFloatFlexible(h, hotelNumbers["rooms"]...); finite(f) && *f > 0 {
		rooms = int(*f)
	}

	price := 0
	if f := getFloatFlexible(h, hotelNumbers["price"]...); finite(f) {
		price = int(math.Round(*f))
	}

	image := firstNonEmptyAlias(h, hotelAliases, "image")
	if image == "" {
		image = firstNonEmptyAlias(h, hotelAliases, "thumb")
	}
	if image == "" {
		image = PlaceholderImage
	}

	return domain.Accommodation{
		ID:                  id,
		Name:                normalizeText(name),
		Location:            location,
		Prefecture:          prefecture,
		NextNewMoon:         nextNewMoon,
		ClearSkyProbability: clearSkyProbability(locScore, rating),
		Price:               price,
		Rating:              rating,
		AvailableRooms:      rooms,
		ImageURL:            image,
		LightPollution:      lightPollution(locScore, lat),
		Altitude:            altitude(lat),
	}, true
}
