package domain

import (
	"math"
	"strconv"
	"strings"
)

// Coordinate is a validated WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate validates lat/lon and returns the point.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return Coordinate{}, Validationf("coordinate", "latitude must be a finite number")
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return Coordinate{}, Validationf("coordinate", "longitude must be a finite number")
	}
	if lat < -90 || lat > 90 {
		return Coordinate{}, Validationf("coordinate", "latitude %v out of range [-90,90]", lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinate{}, Validationf("coordinate", "longitude %v out of range [-180,180]", lon)
	}
	return Coordinate{Lat: lat, Lon: lon}, nil
}

// ParseCoordinate accepts textual input (query strings, CLI flags).
func ParseCoordinate(lat, lon string) (Coordinate, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Coordinate{}, Validationf("coordinate", "latitude %q is not a number", lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return Coordinate{}, Validationf("coordinate", "longitude %q is not a number", lon)
	}
	return NewCoordinate(la, lo)
}

// Validate re-checks a Coordinate built as a literal.
func (c Coordinate) Validate() error {
	_, err := NewCoordinate(c.Lat, c.Lon)
	return err
}

// LatString / LonString render the value for provider query strings.
func (c Coordinate) LatString() string { return strconv.FormatFloat(c.Lat, 'f', 6, 64) }
func (c Coordinate) LonString() string { return strconv.FormatFloat(c.Lon, 'f', 6, 64) }
