package domain

// LightPollution is a coarse darkness estimate.
type LightPollution string

const (
	LightLow    LightPollution = "low"
	LightMedium LightPollution = "medium"
	LightHigh   LightPollution = "high"
)

// UnknownPrefecture marks a record whose address had no usable prefecture.
const UnknownPrefecture = "unknown"

// Accommodation is a normalized lodging listing. ID is stable across the
// date-scoped queries for the same property.
type Accommodation struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Location            string         `json:"location"`
	Prefecture          string         `json:"prefecture"`
	NextNewMoon         string         `json:"nextNewMoon"`
	ClearSkyProbability int            `json:"clearSkyProbability"`
	Price               int            `json:"price"`
	Rating              float64        `json:"rating"`
	AvailableRooms      int            `json:"availableRooms"`
	ImageURL            string         `json:"imageUrl"`
	LightPollution      LightPollution `json:"lightPollution"`
	Altitude            int            `json:"altitude"`
}

// MoonInfo describes the moon for the queried date.
type MoonInfo struct {
	NextNewMoon  string  `json:"nextNewMoon"`
	Age          int     `json:"age"`
	Illumination float64 `json:"illumination"`
}

// SearchResult is what one aggregation call produces.
type SearchResult struct {
	Accommodations []Accommodation `json:"accommodations"`
	Address        string          `json:"address"`
	Coordinate     Coordinate      `json:"coordinate"`
	Weather        DailyWeather    `json:"weather"`
	Moon           MoonInfo        `json:"moon"`
}
