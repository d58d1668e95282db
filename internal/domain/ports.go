package domain

import (
	"context"
	"time"
)

// ForecastClient fetches the raw time series for a coordinate and window.
type ForecastClient interface {
	Forecast(ctx context.Context, c Coordinate, w DateWindow) (Forecast, error)
}

// AddressClient resolves a coordinate to a display address.
type AddressClient interface {
	ReverseGeocode(ctx context.Context, c Coordinate) (string, error)
}

// LodgingClient lists vacant properties around a coordinate for one check-in
// date. Entries are returned in the provider's raw shape.
type LodgingClient interface {
	VacantHotels(ctx context.Context, c Coordinate, checkin time.Time) ([]map[string]any, error)
}
