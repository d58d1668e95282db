package shared

import (
	"sort"
	"strings"

	"hoshizora/internal/domain"
)

// Region is a named stargazing area.
type Region struct {
	Slug  string            `json:"slug"`
	Name  string            `json:"name"`
	Coord domain.Coordinate `json:"coordinate"`
}

var regions = []Region{
	{Slug: "nobeyama", Name: "野辺山高原", Coord: domain.Coordinate{Lat: 35.9456, Lon: 138.4725}},
	{Slug: "achi", Name: "阿智村", Coord: domain.Coordinate{Lat: 35.4433, Lon: 137.7458}},
	{Slug: "bisei", Name: "美星町", Coord: domain.Coordinate{Lat: 34.6703, Lon: 133.5436}},
	{Slug: "ishigaki", Name: "石垣島", Coord: domain.Coordinate{Lat: 24.3448, Lon: 124.1572}},
	{Slug: "rikubetsu", Name: "陸別町", Coord: domain.Coordinate{Lat: 43.4678, Lon: 143.7461}},
	{Slug: "kozushima", Name: "神津島", Coord: domain.Coordinate{Lat: 34.2056, Lon: 139.1339}},
	{Slug: "hoshinomura", Name: "星のふる里 大塔", Coord: domain.Coordinate{Lat: 34.2289, Lon: 135.7989}},
	{Slug: "tsugaike", Name: "栂池高原", Coord: domain.Coordinate{Lat: 36.7617, Lon: 137.8414}},
}

// Regions lists the table sorted by slug.
func Regions() []Region {
	out := append([]Region(nil), regions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// LookupRegion matches a slug or display name.
func LookupRegion(name string) (Region, bool) {
	name = strings.TrimSpace(name)
	for _, r := range regions {
		if strings.EqualFold(r.Slug, name) || r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}
